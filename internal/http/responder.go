package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/logging"
)

var (
	errBadRequestBody      = errors.New("request body is malformed")
	errInvalidSpaceID      = errors.New("space id is invalid")
	errInvalidBookingID    = errors.New("booking id is invalid")
	errMissingSessionToken = errors.New("session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto HTTP statuses. The
// error_code field carries the upper-cased application.ErrorKind label.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	if errors.Is(err, errBadRequestBody) {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "BAD_REQUEST",
			Message:   errBadRequestBody.Error(),
		})
		return
	}

	code := strings.ToUpper(application.ErrorKind(err))

	var conflictErr *application.ConflictError
	if errors.As(err, &conflictErr) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: code,
			Message:   "the requested interval overlaps an approved booking",
			Conflicts: toConflictDTOs(conflictErr),
		})
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: code,
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	status, message := http.StatusInternalServerError, statusMessage(http.StatusInternalServerError)
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		status, message = http.StatusForbidden, "you are not allowed to perform this operation"
	case errors.Is(err, application.ErrNotOwner):
		status, message = http.StatusForbidden, "only the space owner may perform this operation"
	case errors.Is(err, application.ErrNotRenter):
		status, message = http.StatusForbidden, "only the renter may perform this operation"
	case errors.Is(err, application.ErrNotFound):
		status, message = http.StatusNotFound, statusMessage(http.StatusNotFound)
	case errors.Is(err, application.ErrAlreadyExists):
		status, message = http.StatusConflict, "the resource already exists"
	case errors.Is(err, application.ErrInvalidTransition):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, application.ErrStaleBooking):
		status, message = http.StatusConflict, "the booking was modified concurrently, retry the request"
	case errors.Is(err, application.ErrSpaceUnavailable):
		status, message = http.StatusConflict, "the space is not available for booking"
	case errors.Is(err, application.ErrPastStart):
		status, message = http.StatusUnprocessableEntity, "the booking must not start in the past"
	case errors.Is(err, application.ErrInvalidRange):
		status, message = http.StatusUnprocessableEntity, "the booking end must be after its start"
	case errors.Is(err, application.ErrMissingEnd):
		status, message = http.StatusUnprocessableEntity, "an end time is required for this duration type"
	case errors.Is(err, application.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "email or password is incorrect"
	case errors.Is(err, application.ErrAccountDisabled):
		status, message = http.StatusForbidden, "the account is disabled"
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		status, message = http.StatusUnauthorized, "the session is no longer valid, log in again"
	}

	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is invalid"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "you are not allowed to perform this operation"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid fields"
	default:
		return "an internal error occurred"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	BookingID string `json:"booking_id"`
	SpaceID   string `json:"space_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

func toConflictDTOs(err *application.ConflictError) []conflictDTO {
	if err == nil {
		return nil
	}
	out := make([]conflictDTO, 0, len(err.Conflicts))
	for _, c := range err.Conflicts {
		out = append(out, conflictDTO{
			BookingID: c.ID,
			SpaceID:   c.ResourceID,
			Start:     formatTime(c.Start),
			End:       formatTime(c.End),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
