package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/parkshare/internal/application"
)

type spaceService interface {
	CreateSpace(ctx context.Context, params application.CreateSpaceParams) (application.Space, error)
	UpdateSpace(ctx context.Context, params application.UpdateSpaceParams) (application.Space, error)
	SetAvailability(ctx context.Context, params application.SetAvailabilityParams) (application.Space, error)
	DeleteSpace(ctx context.Context, principal application.Principal, spaceID string) error
	GetSpace(ctx context.Context, spaceID string) (application.Space, error)
	ListAvailableSpaces(ctx context.Context) ([]application.Space, error)
	ListSpacesForOwner(ctx context.Context, principal application.Principal) ([]application.Space, error)
	AddSpaceImage(ctx context.Context, params application.AddSpaceImageParams) (application.SpaceImage, error)
}

type SpaceHandler struct {
	service   spaceService
	responder responder
	logger    *slog.Logger
}

func NewSpaceHandler(service spaceService, logger *slog.Logger) *SpaceHandler {
	base := defaultLogger(logger)
	return &SpaceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SpaceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SpaceHandler", operation, attrs...)
}

func (h *SpaceHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// List returns the public home listing of available spaces.
func (h *SpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaces, err := h.service.ListAvailableSpaces(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list spaces", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceListResponse{Spaces: toSpaceDTOs(spaces)})
}

// ListOwned returns every listing of the authenticated host, archived ones included.
func (h *SpaceHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	spaces, err := h.service.ListSpacesForOwner(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "ListOwned", "principal_id", principal.UserID).ErrorContext(r.Context(), "failed to list owned spaces", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceListResponse{Spaces: toSpaceDTOs(spaces)})
}

func (h *SpaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}

	space, err := h.service.GetSpace(r.Context(), spaceID)
	if err != nil {
		h.log(r.Context(), "Get", "space_id", spaceID).ErrorContext(r.Context(), "failed to load space", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceResponse{Space: toSpaceDTO(space)})
}

func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	input, err := decodeSpaceInput(r)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid space request", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	space, err := h.service.CreateSpace(r.Context(), application.CreateSpaceParams{Principal: principal, Input: input})
	if err != nil {
		logger.ErrorContext(r.Context(), "space creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("space_id", space.ID).InfoContext(r.Context(), "space created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, spaceResponse{Space: toSpaceDTO(space)})
}

func (h *SpaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "space_id", spaceID)

	input, err := decodeSpaceInput(r)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid space request", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	space, err := h.service.UpdateSpace(r.Context(), application.UpdateSpaceParams{
		Principal: principal,
		SpaceID:   spaceID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "space update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "space updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceResponse{Space: toSpaceDTO(space)})
}

// SetAvailability archives or restores a listing. An empty body toggles it.
func (h *SpaceHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "SetAvailability", "principal_id", principal.UserID, "space_id", spaceID)

	var req availabilityRequest
	if err := decodeOptionalRequest(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "invalid availability request", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	space, err := h.service.SetAvailability(r.Context(), application.SetAvailabilityParams{
		Principal: principal,
		SpaceID:   spaceID,
		Available: req.Available,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "availability change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, spaceResponse{Space: toSpaceDTO(space)})
}

func (h *SpaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "space_id", spaceID)

	if err := h.service.DeleteSpace(r.Context(), principal, spaceID); err != nil {
		logger.ErrorContext(r.Context(), "space deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "space deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SpaceHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "AddImage", "principal_id", principal.UserID, "space_id", spaceID)

	var req imageRequest
	if err := decodeRequest(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "invalid image request", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	image, err := h.service.AddSpaceImage(r.Context(), application.AddSpaceImageParams{
		Principal: principal,
		SpaceID:   spaceID,
		Path:      req.Path,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "image upload failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, imageResponse{Image: toImageDTO(image)})
}

func decodeSpaceInput(r *http.Request) (application.SpaceInput, error) {
	var req spaceRequest
	if err := decodeRequest(r, &req); err != nil {
		return application.SpaceInput{}, err
	}
	return req.toInput()
}

// pathID returns the {id} path segment.
func pathID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	return id, id != ""
}

type spaceRequest struct {
	Title        string `json:"title" validate:"required,max=100"`
	Description  string `json:"description" validate:"required"`
	Location     string `json:"location" validate:"required,max=100"`
	PricePerHour string `json:"price_per_hour" validate:"required,price"`
}

func (req spaceRequest) toInput() (application.SpaceInput, error) {
	price, err := application.ParseCents(req.PricePerHour)
	if err != nil {
		return application.SpaceInput{}, &application.ValidationError{
			FieldErrors: map[string]string{"price_per_hour": err.Error()},
		}
	}
	return application.SpaceInput{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Location:     strings.TrimSpace(req.Location),
		PricePerHour: price,
	}, nil
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

type imageRequest struct {
	Path string `json:"path" validate:"required,max=255"`
}

type spaceDTO struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	PricePerHour string     `json:"price_per_hour"`
	Available    bool       `json:"is_available"`
	Images       []imageDTO `json:"images"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

type imageDTO struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

type spaceResponse struct {
	Space spaceDTO `json:"space"`
}

type spaceListResponse struct {
	Spaces []spaceDTO `json:"spaces"`
}

type imageResponse struct {
	Image imageDTO `json:"image"`
}

func toSpaceDTO(space application.Space) spaceDTO {
	images := make([]imageDTO, 0, len(space.Images))
	for _, image := range space.Images {
		images = append(images, toImageDTO(image))
	}
	return spaceDTO{
		ID:           space.ID,
		OwnerID:      space.OwnerID,
		Title:        space.Title,
		Description:  space.Description,
		Location:     space.Location,
		PricePerHour: space.PricePerHour.String(),
		Available:    space.Available,
		Images:       images,
		CreatedAt:    formatTime(space.CreatedAt),
		UpdatedAt:    formatTime(space.UpdatedAt),
	}
}

func toSpaceDTOs(spaces []application.Space) []spaceDTO {
	out := make([]spaceDTO, 0, len(spaces))
	for _, space := range spaces {
		out = append(out, toSpaceDTO(space))
	}
	return out
}

func toImageDTO(image application.SpaceImage) imageDTO {
	return imageDTO{ID: image.ID, Path: image.Path, CreatedAt: formatTime(image.CreatedAt)}
}
