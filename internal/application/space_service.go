package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parkshare/internal/persistence"
)

// SpaceRepository captures the persistence operations needed by the space service.
type SpaceRepository interface {
	CreateSpace(ctx context.Context, space Space) (Space, error)
	GetSpace(ctx context.Context, id string) (Space, error)
	UpdateSpace(ctx context.Context, space Space) (Space, error)
	// DeleteSpace removes the space with its bookings and images atomically.
	DeleteSpace(ctx context.Context, id string) error
	ListSpaces(ctx context.Context, filter SpaceFilter) ([]Space, error)
	AddSpaceImage(ctx context.Context, image SpaceImage) (SpaceImage, error)
	ListSpaceImages(ctx context.Context, spaceID string) ([]SpaceImage, error)
}

// ListingCache stores the public listing of available spaces.
type ListingCache interface {
	GetAvailableSpaces(ctx context.Context) ([]Space, bool, error)
	SetAvailableSpaces(ctx context.Context, spaces []Space) error
	InvalidateAvailableSpaces(ctx context.Context) error
}

// SpaceService orchestrates validation, authorization, and persistence for listings.
type SpaceService struct {
	spaces      SpaceRepository
	cache       ListingCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSpaceService constructs a space service with the provided dependencies.
func NewSpaceService(spaces SpaceRepository, cache ListingCache, idGenerator func() string, now func() time.Time) *SpaceService {
	return NewSpaceServiceWithLogger(spaces, cache, idGenerator, now, nil)
}

// NewSpaceServiceWithLogger constructs a space service with a specified logger.
func NewSpaceServiceWithLogger(spaces SpaceRepository, cache ListingCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SpaceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SpaceService{spaces: spaces, cache: cache, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *SpaceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SpaceService", operation, attrs...)
}

func (s *SpaceService) ready() error {
	if s == nil {
		return fmt.Errorf("SpaceService is nil")
	}
	if s.spaces == nil {
		return fmt.Errorf("space repository not configured")
	}
	return nil
}

// CreateSpace lists a new space owned by the principal.
func (s *SpaceService) CreateSpace(ctx context.Context, params CreateSpaceParams) (space Space, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateSpace", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create space", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("space_id", space.ID).InfoContext(ctx, "space created")
	}()

	if strings.TrimSpace(params.Principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	input := normalizeSpaceInput(params.Input)
	if vErr := validateSpaceInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	space = Space{
		ID:           s.idGenerator(),
		OwnerID:      params.Principal.UserID,
		Title:        input.Title,
		Description:  input.Description,
		Location:     input.Location,
		PricePerHour: input.PricePerHour,
		Available:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	space, err = s.spaces.CreateSpace(ctx, space)
	if err != nil {
		err = mapSpaceRepoError(err)
		return
	}

	s.invalidate(ctx, logger)
	return
}

// UpdateSpace edits a listing owned by the principal.
func (s *SpaceService) UpdateSpace(ctx context.Context, params UpdateSpaceParams) (space Space, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateSpace",
		"principal_id", params.Principal.UserID,
		"space_id", params.SpaceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update space", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "space updated")
	}()

	var existing Space
	if existing, err = s.ownedSpace(ctx, params.Principal, params.SpaceID); err != nil {
		return
	}

	input := normalizeSpaceInput(params.Input)
	if vErr := validateSpaceInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Title = input.Title
	updated.Description = input.Description
	updated.Location = input.Location
	updated.PricePerHour = input.PricePerHour
	updated.UpdatedAt = s.now()

	space, err = s.spaces.UpdateSpace(ctx, updated)
	if err != nil {
		err = mapSpaceRepoError(err)
		return
	}

	s.invalidate(ctx, logger)
	return
}

// SetAvailability archives or restores a listing. Archived spaces accept no
// new booking requests; existing bookings are untouched.
func (s *SpaceService) SetAvailability(ctx context.Context, params SetAvailabilityParams) (space Space, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "SetAvailability",
		"principal_id", params.Principal.UserID,
		"space_id", params.SpaceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("available", space.Available).InfoContext(ctx, "availability changed")
	}()

	var existing Space
	if existing, err = s.ownedSpace(ctx, params.Principal, params.SpaceID); err != nil {
		return
	}

	updated := existing
	if params.Available != nil {
		updated.Available = *params.Available
	} else {
		updated.Available = !existing.Available
	}
	updated.UpdatedAt = s.now()

	space, err = s.spaces.UpdateSpace(ctx, updated)
	if err != nil {
		err = mapSpaceRepoError(err)
		return
	}

	s.invalidate(ctx, logger)
	return
}

// DeleteSpace removes a listing together with its bookings and images.
func (s *SpaceService) DeleteSpace(ctx context.Context, principal Principal, spaceID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteSpace",
		"principal_id", principal.UserID,
		"space_id", spaceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete space", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "space deleted")
	}()

	if _, err = s.ownedSpace(ctx, principal, spaceID); err != nil {
		return
	}

	if err = s.spaces.DeleteSpace(ctx, spaceID); err != nil {
		err = mapSpaceRepoError(err)
		return
	}

	s.invalidate(ctx, logger)
	return
}

// GetSpace returns a listing with its images.
func (s *SpaceService) GetSpace(ctx context.Context, spaceID string) (Space, error) {
	if err := s.ready(); err != nil {
		return Space{}, err
	}

	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return Space{}, mapSpaceRepoError(err)
	}

	images, err := s.spaces.ListSpaceImages(ctx, spaceID)
	if err != nil {
		return Space{}, mapSpaceRepoError(err)
	}
	space.Images = images
	return space, nil
}

// ListAvailableSpaces returns the public listing, served from the cache when
// one is configured.
func (s *SpaceService) ListAvailableSpaces(ctx context.Context) (spaces []Space, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListAvailableSpaces")

	if s.cache != nil {
		cached, hit, cacheErr := s.cache.GetAvailableSpaces(ctx)
		switch {
		case cacheErr != nil:
			logger.WarnContext(ctx, "listing cache read failed", "error", cacheErr)
		case hit:
			return cached, nil
		}
	}

	spaces, err = s.spaces.ListSpaces(ctx, SpaceFilter{AvailableOnly: true})
	if err != nil {
		err = mapSpaceRepoError(err)
		logger.ErrorContext(ctx, "failed to list spaces", "error", err, "error_kind", ErrorKind(err))
		return
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableSpaces(ctx, spaces); cacheErr != nil {
			logger.WarnContext(ctx, "listing cache write failed", "error", cacheErr)
		}
	}
	return
}

// ListSpacesForOwner returns every listing of the principal, archived ones included.
func (s *SpaceService) ListSpacesForOwner(ctx context.Context, principal Principal) ([]Space, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return nil, ErrUnauthorized
	}

	spaces, err := s.spaces.ListSpaces(ctx, SpaceFilter{OwnerID: principal.UserID})
	if err != nil {
		return nil, mapSpaceRepoError(err)
	}
	return spaces, nil
}

// AddSpaceImage records an uploaded image for a listing owned by the principal.
func (s *SpaceService) AddSpaceImage(ctx context.Context, params AddSpaceImageParams) (image SpaceImage, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AddSpaceImage",
		"principal_id", params.Principal.UserID,
		"space_id", params.SpaceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add image", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("image_id", image.ID).InfoContext(ctx, "image added")
	}()

	if _, err = s.ownedSpace(ctx, params.Principal, params.SpaceID); err != nil {
		return
	}

	path := strings.TrimSpace(params.Path)
	if path == "" {
		vErr := &ValidationError{}
		vErr.add("path", "image path is required")
		err = vErr
		return
	}

	image, err = s.spaces.AddSpaceImage(ctx, SpaceImage{
		ID:        s.idGenerator(),
		SpaceID:   params.SpaceID,
		Path:      path,
		CreatedAt: s.now(),
	})
	if err != nil {
		err = mapSpaceRepoError(err)
	}
	return
}

func (s *SpaceService) ownedSpace(ctx context.Context, principal Principal, spaceID string) (Space, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return Space{}, ErrUnauthorized
	}
	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return Space{}, mapSpaceRepoError(err)
	}
	if space.OwnerID != principal.UserID && !principal.IsAdmin {
		return Space{}, ErrNotOwner
	}
	return space, nil
}

func (s *SpaceService) invalidate(ctx context.Context, logger *slog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailableSpaces(ctx); err != nil {
		logger.WarnContext(ctx, "listing cache invalidation failed", "error", err)
	}
}

func normalizeSpaceInput(input SpaceInput) SpaceInput {
	return SpaceInput{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Location:     strings.TrimSpace(input.Location),
		PricePerHour: input.PricePerHour,
	}
}

func validateSpaceInput(input SpaceInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Title == "" {
		vErr.add("title", "title is required")
	} else if len(input.Title) > 100 {
		vErr.add("title", "title must be at most 100 characters")
	}
	if input.Description == "" {
		vErr.add("description", "description is required")
	}
	if input.Location == "" {
		vErr.add("location", "location is required")
	} else if len(input.Location) > 100 {
		vErr.add("location", "location must be at most 100 characters")
	}
	if msg := validatePrice(input.PricePerHour); msg != "" {
		vErr.add("price_per_hour", msg)
	}
	return vErr
}

func mapSpaceRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("price_per_hour", "price must be between 0 and 9999.99")
		return vErr
	}
	return err
}
