package application

import (
	"errors"
	"sort"
	"strings"

	"github.com/example/parkshare/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a disabled account attempts to log in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions revoked by logout.
	ErrSessionRevoked = errors.New("application: session revoked")

	// ErrPastStart is returned when a booking would start before now.
	ErrPastStart = errors.New("application: booking start is in the past")
	// ErrInvalidRange is returned when a booking end is not after its start.
	ErrInvalidRange = errors.New("application: booking end must be after start")
	// ErrNotOwner is returned when a non-owner approves, declines or edits a space.
	ErrNotOwner = errors.New("application: actor does not own the space")
	// ErrNotRenter is returned when someone other than the renter cancels a booking.
	ErrNotRenter = errors.New("application: actor is not the renter")
	// ErrSpaceUnavailable is returned when booking a space whose listing is archived.
	ErrSpaceUnavailable = errors.New("application: space is not available")
	// ErrStaleBooking is reported by booking repositories when a compare-and-set
	// write lost a race.
	ErrStaleBooking = errors.New("application: booking modified concurrently")

	// ErrMissingEnd is returned when a bounded duration type has no end.
	ErrMissingEnd = scheduler.ErrMissingEnd
	// ErrInvalidTransition is matched by every rejected status change.
	ErrInvalidTransition = scheduler.ErrInvalidTransition
	// ErrConflict is matched by approvals blocked by an approved booking.
	ErrConflict = scheduler.ErrConflict
)

// ConflictError lists the approved bookings that block an approval.
type ConflictError = scheduler.ConflictError

// TransitionError describes a rejected status change.
type TransitionError = scheduler.TransitionError

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
