package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Booking is the view of a persisted booking the resolver needs.
type Booking struct {
	ID         string
	ResourceID string
	Status     Status
	Start      time.Time
	End        time.Time
}

// Interval returns the booking's half-open time range.
func (b Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ErrConflict is matched by every ConflictError.
var ErrConflict = errors.New("scheduler: interval conflicts with an approved booking")

// ConflictError reports the approved bookings that block admission of a candidate.
type ConflictError struct {
	ResourceID string
	Conflicts  []Booking
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("scheduler: %d approved booking(s) overlap on resource %s", len(e.Conflicts), e.ResourceID)
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// FindConflicts returns every approved booking on resourceID that overlaps the
// candidate interval. The booking named by excludeID is skipped, which lets a
// pending booking be re-validated against everyone but itself. Pending,
// declined and cancelled bookings never conflict.
func FindConflicts(existing []Booking, resourceID string, candidate Interval, excludeID string) []Booking {
	var conflicts []Booking
	for _, booking := range existing {
		if booking.ResourceID != resourceID || booking.Status != StatusApproved {
			continue
		}
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		if booking.Interval().Overlaps(candidate) {
			conflicts = append(conflicts, booking)
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}

// CheckAdmission returns a ConflictError when the candidate cannot become binding.
func CheckAdmission(existing []Booking, resourceID string, candidate Interval, excludeID string) error {
	conflicts := FindConflicts(existing, resourceID, candidate, excludeID)
	if len(conflicts) == 0 {
		return nil
	}
	return &ConflictError{ResourceID: resourceID, Conflicts: conflicts}
}
