package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/parkshare/internal/persistence"
	"github.com/example/parkshare/internal/scheduler"
)

// BookingRepository captures the persistence operations needed by the booking service.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// UpdateBookingStatus reports ErrStaleBooking when the stored status or
	// version no longer matches the change.
	UpdateBookingStatus(ctx context.Context, change BookingStatusChange) (Booking, error)
	// WithinSpaceTx serialises fn against other WithinSpaceTx calls for the
	// same space and commits its writes atomically.
	WithinSpaceTx(ctx context.Context, spaceID string, fn func(tx BookingTx) error) error
}

// BookingTx is the transactional view handed to WithinSpaceTx callbacks.
type BookingTx interface {
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	UpdateBookingStatus(ctx context.Context, change BookingStatusChange) (Booking, error)
}

// SpaceReader resolves the space a booking refers to.
type SpaceReader interface {
	GetSpace(ctx context.Context, id string) (Space, error)
}

// Notifier delivers booking lifecycle events after they are committed.
type Notifier interface {
	NotifyBooking(ctx context.Context, event BookingEvent) error
}

// maxStatusAttempts bounds compare-and-set retries for decline and cancel.
const maxStatusAttempts = 3

// BookingService coordinates booking requests, approvals and cancellations.
type BookingService struct {
	bookings    BookingRepository
	spaces      SpaceReader
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a BookingService with the provided dependencies.
func NewBookingService(bookings BookingRepository, spaces SpaceReader, notifier Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, spaces, notifier, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a BookingService with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, spaces SpaceReader, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		spaces:      spaces,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

func (s *BookingService) ready() error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}
	if s.spaces == nil {
		return fmt.Errorf("space repository not configured")
	}
	return nil
}

// CreateBooking records a pending booking request. Overlaps with approved
// bookings are returned as warnings and do not block the request.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, warnings []ConflictWarning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"space_id", input.SpaceID,
		"duration_type", string(input.DurationType),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"booking_id", booking.ID,
			"warnings", len(warnings),
		).InfoContext(ctx, "booking requested")
	}()

	if strings.TrimSpace(params.Principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	start := input.Start.UTC()
	var end time.Time
	end, err = resolveInterval(start, input.DurationType, input.End, s.now())
	if err != nil {
		return
	}

	var space Space
	space, err = s.spaces.GetSpace(ctx, input.SpaceID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if !space.Available {
		err = ErrSpaceUnavailable
		return
	}

	warnings, err = s.approvedOverlaps(ctx, s.bookings, space.ID, scheduler.Interval{Start: start, End: end}, "")
	if err != nil {
		return
	}

	now := s.now()
	booking = Booking{
		ID:           s.idGenerator(),
		SpaceID:      space.ID,
		RenterID:     params.Principal.UserID,
		Start:        start,
		End:          end,
		DurationType: input.DurationType,
		Status:       scheduler.StatusPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var persisted Booking
	persisted, err = s.bookings.CreateBooking(ctx, booking)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	booking = persisted

	s.notify(ctx, logger, BookingRequested, booking, space, params.Principal.UserID)
	return
}

// ApproveBooking moves a pending booking to approved. The conflict check and
// the status write run in one transaction serialised per space, so two
// overlapping bookings can never both become approved.
func (s *BookingService) ApproveBooking(ctx context.Context, params BookingActionParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ApproveBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking approved")
	}()

	var (
		current Booking
		space   Space
	)
	current, space, err = s.loadForOwner(ctx, params)
	if err != nil {
		return
	}

	err = s.bookings.WithinSpaceTx(ctx, space.ID, func(tx BookingTx) error {
		fresh, err := tx.GetBooking(ctx, current.ID)
		if err != nil {
			return mapBookingRepoError(err)
		}
		if err := scheduler.Transition(fresh.Status, scheduler.StatusApproved, scheduler.RoleOwner); err != nil {
			return err
		}

		approved, err := tx.ListBookings(ctx, BookingFilter{
			SpaceID:  space.ID,
			Statuses: []scheduler.Status{scheduler.StatusApproved},
		})
		if err != nil {
			return mapBookingRepoError(err)
		}
		if err := scheduler.CheckAdmission(toSchedulerBookings(approved), space.ID, bookingInterval(fresh), fresh.ID); err != nil {
			return err
		}

		updated, err := tx.UpdateBookingStatus(ctx, BookingStatusChange{
			BookingID:       fresh.ID,
			From:            fresh.Status,
			To:              scheduler.StatusApproved,
			ExpectedVersion: fresh.Version,
			UpdatedAt:       s.now(),
		})
		if err != nil {
			return mapBookingRepoError(err)
		}
		booking = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleBooking) {
			err = s.staleTransition(ctx, current.ID, scheduler.StatusApproved)
		}
		return
	}

	s.notify(ctx, logger, BookingApproved, booking, space, params.Principal.UserID)
	return
}

// DeclineBooking moves a pending booking to declined. Only pending bookings
// can be declined; approved bookings are final.
func (s *BookingService) DeclineBooking(ctx context.Context, params BookingActionParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeclineBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to decline booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking declined")
	}()

	var (
		current Booking
		space   Space
	)
	current, space, err = s.loadForOwner(ctx, params)
	if err != nil {
		return
	}

	booking, err = s.compareAndSet(ctx, current, scheduler.StatusDeclined, scheduler.RoleOwner)
	if err != nil {
		return
	}

	s.notify(ctx, logger, BookingDeclined, booking, space, params.Principal.UserID)
	return
}

// CancelBooking lets the renter withdraw a pending booking.
func (s *BookingService) CancelBooking(ctx context.Context, params BookingActionParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	var current Booking
	current, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if current.RenterID != params.Principal.UserID {
		err = ErrNotRenter
		return
	}

	booking, err = s.compareAndSet(ctx, current, scheduler.StatusCancelled, scheduler.RoleRenter)
	if err != nil {
		return
	}

	var space Space
	if space, err = s.spaces.GetSpace(ctx, booking.SpaceID); err != nil {
		// The cancellation is committed; only the notification lacks context.
		logger.WarnContext(ctx, "failed to load space for notification", "error", err)
		err = nil
		space = Space{ID: booking.SpaceID}
	}

	s.notify(ctx, logger, BookingCancelled, booking, space, params.Principal.UserID)
	return
}

// GetBooking returns a booking with its space. Only the renter, the space
// owner and administrators can see it; everyone else gets ErrNotFound.
func (s *BookingService) GetBooking(ctx context.Context, params BookingActionParams) (details BookingDetails, err error) {
	if err = s.ready(); err != nil {
		return
	}

	var booking Booking
	booking, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	var space Space
	space, err = s.spaces.GetSpace(ctx, booking.SpaceID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	principal := params.Principal
	if principal.UserID != booking.RenterID && principal.UserID != space.OwnerID && !principal.IsAdmin {
		err = ErrNotFound
		return
	}

	details = BookingDetails{Booking: booking, Space: space}
	return
}

// ListBookingsForRenter returns the principal's own bookings.
func (s *BookingService) ListBookingsForRenter(ctx context.Context, principal Principal) ([]Booking, error) {
	return s.listBookings(ctx, "ListBookingsForRenter", principal, BookingFilter{RenterID: principal.UserID})
}

// ListBookingsForOwner returns bookings on every space the principal owns.
func (s *BookingService) ListBookingsForOwner(ctx context.Context, principal Principal) ([]Booking, error) {
	return s.listBookings(ctx, "ListBookingsForOwner", principal, BookingFilter{OwnerID: principal.UserID})
}

// FindConflicts previews which approved bookings overlap a candidate interval.
// It never mutates state.
func (s *BookingService) FindConflicts(ctx context.Context, params FindConflictsParams) (warnings []ConflictWarning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	start := params.Start.UTC()
	if start.IsZero() {
		vErr := &ValidationError{}
		vErr.add("start", "start is required")
		err = vErr
		return
	}

	var end time.Time
	end, err = scheduler.ResolveEnd(start, params.DurationType, params.End)
	if err != nil {
		return
	}
	end = end.UTC()
	if !end.After(start) {
		err = ErrInvalidRange
		return
	}

	if _, err = s.spaces.GetSpace(ctx, params.SpaceID); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	return s.approvedOverlaps(ctx, s.bookings, params.SpaceID, scheduler.Interval{Start: start, End: end}, params.ExcludeBookingID)
}

func (s *BookingService) listBookings(ctx context.Context, operation string, principal Principal, filter BookingFilter) (bookings []Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(bookings)).DebugContext(ctx, "bookings listed")
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	bookings, err = s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	sortBookingsForListing(bookings)
	return
}

func (s *BookingService) loadForOwner(ctx context.Context, params BookingActionParams) (Booking, Space, error) {
	current, err := s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		return Booking{}, Space{}, mapBookingRepoError(err)
	}
	space, err := s.spaces.GetSpace(ctx, current.SpaceID)
	if err != nil {
		return Booking{}, Space{}, mapBookingRepoError(err)
	}
	if space.OwnerID != params.Principal.UserID {
		return Booking{}, Space{}, ErrNotOwner
	}
	return current, space, nil
}

// compareAndSet validates and writes a single-row status change. When the
// write loses a race the booking is re-read and the transition re-validated,
// which turns a concurrent approve/cancel into an invalid transition.
func (s *BookingService) compareAndSet(ctx context.Context, current Booking, to scheduler.Status, role scheduler.Role) (Booking, error) {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		if err := scheduler.Transition(current.Status, to, role); err != nil {
			return Booking{}, err
		}

		updated, err := s.bookings.UpdateBookingStatus(ctx, BookingStatusChange{
			BookingID:       current.ID,
			From:            current.Status,
			To:              to,
			ExpectedVersion: current.Version,
			UpdatedAt:       s.now(),
		})
		if err == nil {
			return updated, nil
		}
		if err = mapBookingRepoError(err); !errors.Is(err, ErrStaleBooking) {
			return Booking{}, err
		}

		current, err = s.bookings.GetBooking(ctx, current.ID)
		if err != nil {
			return Booking{}, mapBookingRepoError(err)
		}
	}
	return Booking{}, &TransitionError{From: current.Status, To: to}
}

func (s *BookingService) staleTransition(ctx context.Context, bookingID string, to scheduler.Status) error {
	latest, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapBookingRepoError(err)
	}
	return &TransitionError{From: latest.Status, To: to}
}

type bookingLister interface {
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

func (s *BookingService) approvedOverlaps(ctx context.Context, reader bookingLister, spaceID string, candidate scheduler.Interval, excludeID string) ([]ConflictWarning, error) {
	approved, err := reader.ListBookings(ctx, BookingFilter{
		SpaceID:  spaceID,
		Statuses: []scheduler.Status{scheduler.StatusApproved},
	})
	if err != nil {
		return nil, mapBookingRepoError(err)
	}

	conflicts := scheduler.FindConflicts(toSchedulerBookings(approved), spaceID, candidate, excludeID)
	warnings := make([]ConflictWarning, 0, len(conflicts))
	for _, conflict := range conflicts {
		warnings = append(warnings, ConflictWarning{
			BookingID: conflict.ID,
			SpaceID:   conflict.ResourceID,
			Start:     conflict.Start,
			End:       conflict.End,
		})
	}
	return warnings, nil
}

func (s *BookingService) notify(ctx context.Context, logger *slog.Logger, eventType BookingEventType, booking Booking, space Space, actorID string) {
	if s.notifier == nil {
		return
	}
	event := BookingEvent{
		Type:       eventType,
		Booking:    booking,
		Space:      space,
		ActorID:    actorID,
		OccurredAt: s.now(),
	}
	if err := s.notifier.NotifyBooking(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to deliver booking notification", "event", string(eventType), "error", err)
	}
}

// resolveInterval expands the duration type and enforces the creation rules:
// the start may not lie in the past and the end must follow the start.
func resolveInterval(start time.Time, durationType scheduler.DurationType, explicitEnd *time.Time, now time.Time) (time.Time, error) {
	end, err := scheduler.ResolveEnd(start, durationType, explicitEnd)
	if err != nil {
		return time.Time{}, err
	}
	if start.Before(now) {
		return time.Time{}, ErrPastStart
	}
	end = end.UTC()
	if !end.After(start) {
		return time.Time{}, ErrInvalidRange
	}
	return end, nil
}

func validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.SpaceID) == "" {
		vErr.add("space_id", "space is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if _, err := scheduler.ParseDurationType(string(input.DurationType)); err != nil {
		vErr.add("duration_type", "duration type must be one of hour, day, month, year, forever")
	}
	return vErr
}

func bookingInterval(booking Booking) scheduler.Interval {
	return scheduler.Interval{Start: booking.Start, End: booking.End}
}

func toSchedulerBookings(bookings []Booking) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, scheduler.Booking{
			ID:         booking.ID,
			ResourceID: booking.SpaceID,
			Status:     booking.Status,
			Start:      booking.Start,
			End:        booking.End,
		})
	}
	return out
}

// sortBookingsForListing orders by status (pending first) and then newest first.
func sortBookingsForListing(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.Status.Rank() != b.Status.Rank() {
			return a.Status.Rank() < b.Status.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStaleBooking):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStaleVersion):
		return ErrStaleBooking
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("booking", "booking violates a storage constraint")
		return vErr
	}
	return err
}
