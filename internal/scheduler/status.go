package scheduler

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	// StatusPending is the initial state of every booking.
	StatusPending Status = "pending"
	// StatusApproved is the binding state; approved bookings of one space never overlap.
	StatusApproved Status = "approved"
	// StatusDeclined marks a request rejected by the space owner.
	StatusDeclined Status = "declined"
	// StatusCancelled marks a request withdrawn by the renter.
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a stored or user supplied value into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusApproved, StatusDeclined, StatusCancelled:
		return Status(value), nil
	}
	return "", fmt.Errorf("scheduler: unknown booking status %q", value)
}

// IsTerminal reports whether no further transitions leave this state.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDeclined || s == StatusCancelled
}

// Rank orders statuses for listings: pending first, cancelled last.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusApproved:
		return 1
	case StatusDeclined:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 4
	}
}

// Role identifies which party performs a transition.
type Role string

const (
	// RoleOwner is the owner of the booked space.
	RoleOwner Role = "owner"
	// RoleRenter is the user who requested the booking.
	RoleRenter Role = "renter"
)

var (
	// ErrInvalidTransition is matched by every TransitionError.
	ErrInvalidTransition = errors.New("scheduler: invalid status transition")
	// ErrRoleNotPermitted is returned when the edge exists but belongs to another party.
	ErrRoleNotPermitted = errors.New("scheduler: role not permitted for transition")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("scheduler: cannot move booking from %s to %s", e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

var transitions = map[Status]map[Status]Role{
	StatusPending: {
		StatusApproved:  RoleOwner,
		StatusDeclined:  RoleOwner,
		StatusCancelled: RoleRenter,
	},
}

// Transition validates a status change performed by role. It never mutates
// anything; callers persist the new status only when it returns nil.
func Transition(from, to Status, role Role) error {
	edges, ok := transitions[from]
	if !ok {
		return &TransitionError{From: from, To: to}
	}
	required, ok := edges[to]
	if !ok {
		return &TransitionError{From: from, To: to}
	}
	if required != role {
		return fmt.Errorf("%w: %s requires %s", ErrRoleNotPermitted, to, required)
	}
	return nil
}
