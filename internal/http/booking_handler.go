package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/scheduler"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, []application.ConflictWarning, error)
	ApproveBooking(ctx context.Context, params application.BookingActionParams) (application.Booking, error)
	DeclineBooking(ctx context.Context, params application.BookingActionParams) (application.Booking, error)
	CancelBooking(ctx context.Context, params application.BookingActionParams) (application.Booking, error)
	GetBooking(ctx context.Context, params application.BookingActionParams) (application.BookingDetails, error)
	ListBookingsForRenter(ctx context.Context, principal application.Principal) ([]application.Booking, error)
	ListBookingsForOwner(ctx context.Context, principal application.Principal) ([]application.Booking, error)
	FindConflicts(ctx context.Context, params application.FindConflictsParams) ([]application.ConflictWarning, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Create requests a booking on the space named in the path. Overlaps with
// approved bookings are returned as warnings and do not block the request.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "space_id", spaceID)

	var req bookingRequest
	if err := decodeRequest(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "invalid booking request", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	window, err := parseWindow(req.Start, req.End, req.DurationType)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	booking, warnings, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input: application.BookingInput{
			SpaceID:      spaceID,
			Start:        window.start,
			End:          window.end,
			DurationType: window.durationType,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID, "warnings", len(warnings)).InfoContext(r.Context(), "booking requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingCreatedResponse{
		Booking:  toBookingDTO(booking),
		Warnings: toWarningDTOs(warnings),
	})
}

// Conflicts previews the approved bookings a request would overlap.
func (h *BookingHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	spaceID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpaceID)
		return
	}

	query := r.URL.Query()
	req := conflictQuery{
		Start:        query.Get("start"),
		DurationType: query.Get("duration_type"),
	}
	if end := query.Get("end"); end != "" {
		req.End = &end
	}
	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	window, err := parseWindow(req.Start, req.End, req.DurationType)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	warnings, err := h.service.FindConflicts(r.Context(), application.FindConflictsParams{
		SpaceID:      spaceID,
		Start:        window.start,
		End:          window.end,
		DurationType: window.durationType,
	})
	if err != nil {
		h.log(r.Context(), "Conflicts", "space_id", spaceID).ErrorContext(r.Context(), "conflict preview failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictListResponse{Conflicts: toWarningDTOs(warnings)})
}

// Get returns the booking summary to its renter or the space owner.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	details, err := h.service.GetBooking(r.Context(), application.BookingActionParams{Principal: principal, BookingID: bookingID})
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "booking_id", bookingID).ErrorContext(r.Context(), "failed to load booking", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingDetailsResponse{
		Booking: toBookingDTO(details.Booking),
		Space:   toSpaceDTO(details.Space),
	})
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Approve", h.service.ApproveBooking)
}

func (h *BookingHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Decline", h.service.DeclineBooking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Cancel", h.service.CancelBooking)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, operation string, action func(context.Context, application.BookingActionParams) (application.Booking, error)) {
	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := action(r.Context(), application.BookingActionParams{Principal: principal, BookingID: bookingID})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", booking.Status).InfoContext(r.Context(), "booking transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// ListMine returns the renter view of the caller's bookings.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	h.list(w, r, "ListMine", principal, h.service.ListBookingsForRenter)
}

// ListHosted returns the bookings on spaces the caller owns.
func (h *BookingHandler) ListHosted(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	h.list(w, r, "ListHosted", principal, h.service.ListBookingsForOwner)
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, operation string, principal application.Principal, fetch func(context.Context, application.Principal) ([]application.Booking, error)) {
	bookings, err := fetch(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID).ErrorContext(r.Context(), "failed to list bookings", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingListResponse{Bookings: out})
}

type bookingRequest struct {
	Start        string  `json:"start" validate:"required"`
	End          *string `json:"end,omitempty"`
	DurationType string  `json:"duration_type" validate:"required,duration_type"`
}

type conflictQuery struct {
	Start        string  `json:"start" validate:"required"`
	End          *string `json:"end"`
	DurationType string  `json:"duration_type" validate:"required,duration_type"`
}

type bookingWindow struct {
	start        time.Time
	end          *time.Time
	durationType scheduler.DurationType
}

// parseWindow converts RFC 3339 request fields. End resolution is left to
// the booking service.
func parseWindow(start string, end *string, durationType string) (bookingWindow, error) {
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}

	var window bookingWindow
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
	if err != nil {
		vErr.FieldErrors["start"] = "start must be an RFC 3339 timestamp"
	}
	window.start = parsed.UTC()

	if end != nil && strings.TrimSpace(*end) != "" {
		parsedEnd, err := time.Parse(time.RFC3339, strings.TrimSpace(*end))
		if err != nil {
			vErr.FieldErrors["end"] = "end must be an RFC 3339 timestamp"
		} else {
			parsedEnd = parsedEnd.UTC()
			window.end = &parsedEnd
		}
	}

	window.durationType, err = scheduler.ParseDurationType(durationType)
	if err != nil {
		vErr.FieldErrors["duration_type"] = "duration_type must be one of hour, day, month, year, forever"
	}

	if vErr.HasErrors() {
		return bookingWindow{}, vErr
	}
	return window, nil
}

type bookingDTO struct {
	ID           string `json:"id"`
	SpaceID      string `json:"space_id"`
	RenterID     string `json:"renter_id"`
	Start        string `json:"start"`
	End          string `json:"end"`
	DurationType string `json:"duration_type"`
	Status       string `json:"status"`
	Version      int64  `json:"version"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type warningDTO struct {
	BookingID string `json:"booking_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type bookingCreatedResponse struct {
	Booking  bookingDTO   `json:"booking"`
	Warnings []warningDTO `json:"warnings"`
}

type bookingDetailsResponse struct {
	Booking bookingDTO `json:"booking"`
	Space   spaceDTO   `json:"space"`
}

type bookingListResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type conflictListResponse struct {
	Conflicts []warningDTO `json:"conflicts"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:           booking.ID,
		SpaceID:      booking.SpaceID,
		RenterID:     booking.RenterID,
		Start:        formatTime(booking.Start),
		End:          formatTime(booking.End),
		DurationType: string(booking.DurationType),
		Status:       string(booking.Status),
		Version:      booking.Version,
		CreatedAt:    formatTime(booking.CreatedAt),
		UpdatedAt:    formatTime(booking.UpdatedAt),
	}
}

func toWarningDTOs(warnings []application.ConflictWarning) []warningDTO {
	out := make([]warningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, warningDTO{
			BookingID: warning.BookingID,
			Start:     formatTime(warning.Start),
			End:       formatTime(warning.End),
		})
	}
	return out
}
