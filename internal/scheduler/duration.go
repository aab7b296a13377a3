package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// DurationType is the symbolic length tag a renter picks for a booking.
type DurationType string

const (
	DurationHour    DurationType = "hour"
	DurationDay     DurationType = "day"
	DurationMonth   DurationType = "month"
	DurationYear    DurationType = "year"
	DurationForever DurationType = "forever"
)

// ForeverYears is how far an open-ended booking extends when no end is given.
const ForeverYears = 10

// ErrMissingEnd is returned when no explicit end was supplied and the
// duration type does not imply one.
var ErrMissingEnd = errors.New("scheduler: end time required for duration type")

// ParseDurationType converts user input into a DurationType.
func ParseDurationType(value string) (DurationType, error) {
	switch DurationType(value) {
	case DurationHour, DurationDay, DurationMonth, DurationYear, DurationForever:
		return DurationType(value), nil
	}
	return "", fmt.Errorf("scheduler: unknown duration type %q", value)
}

// ResolveEnd derives the concrete end instant of a booking. An explicit end is
// returned unchanged and the duration type is then advisory metadata only.
// Only DurationForever synthesizes an end.
func ResolveEnd(start time.Time, durationType DurationType, explicitEnd *time.Time) (time.Time, error) {
	if explicitEnd != nil && !explicitEnd.IsZero() {
		return *explicitEnd, nil
	}
	if durationType == DurationForever {
		return start.AddDate(ForeverYears, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrMissingEnd, durationType)
}
