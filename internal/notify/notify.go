// Package notify delivers booking lifecycle events to renters and owners.
// Notifiers are best effort: the booking service logs their errors and never
// rolls a committed change back because of them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/example/parkshare/internal/application"
)

// Payload is the wire representation of an application.BookingEvent.
type Payload struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	SpaceID    string    `json:"space_id"`
	SpaceTitle string    `json:"space_title"`
	OwnerID    string    `json:"owner_id"`
	RenterID   string    `json:"renter_id"`
	ActorID    string    `json:"actor_id"`
	Status     string    `json:"status"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewPayload flattens event into its wire form.
func NewPayload(event application.BookingEvent) Payload {
	return Payload{
		Type:       string(event.Type),
		BookingID:  event.Booking.ID,
		SpaceID:    event.Space.ID,
		SpaceTitle: event.Space.Title,
		OwnerID:    event.Space.OwnerID,
		RenterID:   event.Booking.RenterID,
		ActorID:    event.ActorID,
		Status:     string(event.Booking.Status),
		Start:      event.Booking.Start.UTC(),
		End:        event.Booking.End.UTC(),
		OccurredAt: event.OccurredAt.UTC(),
	}
}

// Marshal encodes the payload as JSON.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// LogNotifier writes every event to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier logging at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyBooking implements application.Notifier.
func (n *LogNotifier) NotifyBooking(ctx context.Context, event application.BookingEvent) error {
	n.logger.InfoContext(ctx, "booking event",
		"event_type", string(event.Type),
		"booking_id", event.Booking.ID,
		"space_id", event.Space.ID,
		"actor_id", event.ActorID,
		"status", string(event.Booking.Status),
	)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []application.Notifier

// NotifyBooking implements application.Notifier.
func (m Multi) NotifyBooking(ctx context.Context, event application.BookingEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyBooking(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
