package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/example/parkshare/internal/application"
	"github.com/example/parkshare/internal/scheduler"
)

func sampleEvent(eventType application.BookingEventType) application.BookingEvent {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return application.BookingEvent{
		Type: eventType,
		Booking: application.Booking{
			ID:       "booking-1",
			SpaceID:  "space-1",
			RenterID: "renter-1",
			Start:    start,
			End:      start.Add(2 * time.Hour),
			Status:   scheduler.StatusPending,
		},
		Space: application.Space{
			ID:       "space-1",
			OwnerID:  "owner-1",
			Title:    "Driveway",
			Location: "1 Main St",
		},
		ActorID:    "renter-1",
		OccurredAt: start.Add(-time.Hour),
	}
}

type recordingPublisher struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestEventNotifier(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{}
	notifier := NewEventNotifier(publisher)

	require.NoError(t, notifier.NotifyBooking(context.Background(), sampleEvent(application.BookingRequested)))
	require.Len(t, publisher.keys, 1)
	assert.Equal(t, "booking.requested", publisher.keys[0])

	var payload Payload
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &payload))
	assert.Equal(t, "booking-1", payload.BookingID)
	assert.Equal(t, "owner-1", payload.OwnerID)
	assert.Equal(t, "renter-1", payload.RenterID)
	assert.Equal(t, "pending", payload.Status)
	assert.True(t, payload.Start.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)))

	publisher.err = errors.New("channel closed")
	assert.ErrorIs(t, notifier.NotifyBooking(context.Background(), sampleEvent(application.BookingApproved)), publisher.err)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	notifier := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, notifier.NotifyBooking(context.Background(), sampleEvent(application.BookingDeclined)))
	assert.Contains(t, buf.String(), `"event_type":"booking.declined"`)
	assert.Contains(t, buf.String(), `"booking_id":"booking-1"`)
}

type notifierFunc func(ctx context.Context, event application.BookingEvent) error

func (f notifierFunc) NotifyBooking(ctx context.Context, event application.BookingEvent) error {
	return f(ctx, event)
}

func TestMulti(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	second := errors.New("second")
	calls := 0
	multi := Multi{
		notifierFunc(func(context.Context, application.BookingEvent) error { calls++; return first }),
		nil,
		notifierFunc(func(context.Context, application.BookingEvent) error { calls++; return nil }),
		notifierFunc(func(context.Context, application.BookingEvent) error { calls++; return second }),
	}

	err := multi.NotifyBooking(context.Background(), sampleEvent(application.BookingRequested))
	assert.Equal(t, 3, calls, "every notifier runs even after a failure")
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)

	assert.NoError(t, Multi{}.NotifyBooking(context.Background(), sampleEvent(application.BookingRequested)))
}

type capturingMailer struct {
	sent []*mail.Msg
	err  error
}

func (m *capturingMailer) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	m.sent = append(m.sent, messages...)
	return m.err
}

type userDirectoryStub map[string]application.User

func (d userDirectoryStub) GetUser(ctx context.Context, id string) (application.User, error) {
	user, ok := d[id]
	if !ok {
		return application.User{}, application.ErrNotFound
	}
	return user, nil
}

func TestEmailNotifier(t *testing.T) {
	t.Parallel()

	users := userDirectoryStub{
		"owner-1":  {ID: "owner-1", Email: "owner@example.com", DisplayName: "Olive"},
		"renter-1": {ID: "renter-1", Email: "renter@example.com", DisplayName: "Ravi"},
	}

	tests := []struct {
		eventType application.BookingEventType
		wantTo    string
		subject   string
	}{
		{application.BookingRequested, "owner@example.com", "New booking request for Driveway"},
		{application.BookingCancelled, "owner@example.com", "Booking cancelled for Driveway"},
		{application.BookingApproved, "renter@example.com", "Your booking for Driveway was approved"},
		{application.BookingDeclined, "renter@example.com", "Your booking for Driveway was declined"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			mailer := &capturingMailer{}
			notifier := NewEmailNotifier(mailer, users, "noreply@parkshare.example")

			require.NoError(t, notifier.NotifyBooking(context.Background(), sampleEvent(tt.eventType)))
			require.Len(t, mailer.sent, 1)

			recipients, err := mailer.sent[0].GetRecipients()
			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantTo}, recipients)
			assert.Equal(t, []string{tt.subject}, mailer.sent[0].GetGenHeader(mail.HeaderSubject))
		})
	}

	t.Run("unknown recipient", func(t *testing.T) {
		mailer := &capturingMailer{}
		notifier := NewEmailNotifier(mailer, userDirectoryStub{}, "noreply@parkshare.example")

		err := notifier.NotifyBooking(context.Background(), sampleEvent(application.BookingApproved))
		assert.ErrorIs(t, err, application.ErrNotFound)
		assert.Empty(t, mailer.sent)
	})

	t.Run("unknown event type is ignored", func(t *testing.T) {
		mailer := &capturingMailer{}
		notifier := NewEmailNotifier(mailer, users, "noreply@parkshare.example")

		require.NoError(t, notifier.NotifyBooking(context.Background(), sampleEvent("booking.archived")))
		assert.Empty(t, mailer.sent)
	})
}

func TestEmailBody(t *testing.T) {
	t.Parallel()

	body := emailBody(application.User{DisplayName: "Ravi"}, sampleEvent(application.BookingApproved))
	assert.True(t, strings.HasPrefix(body, "Hello Ravi,"))
	assert.Contains(t, body, "From:  2025-06-01 10:00 UTC")
	assert.Contains(t, body, "Until: 2025-06-01 12:00 UTC")
	assert.Contains(t, body, "Reference: booking-1")
}

func TestBreakerNotifier(t *testing.T) {
	t.Parallel()

	failure := errors.New("smtp down")
	calls := 0
	inner := notifierFunc(func(context.Context, application.BookingEvent) error {
		calls++
		return failure
	})

	config := BreakerConfig{Name: "email", FailureThreshold: 2, Timeout: time.Hour}
	notifier := NewBreakerNotifier(inner, config, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	event := sampleEvent(application.BookingRequested)

	assert.ErrorIs(t, notifier.NotifyBooking(context.Background(), event), failure)
	assert.ErrorIs(t, notifier.NotifyBooking(context.Background(), event), failure)
	assert.Equal(t, gobreaker.StateOpen, notifier.State())

	assert.ErrorIs(t, notifier.NotifyBooking(context.Background(), event), gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls, "open circuit must not reach the wrapped notifier")
}
