package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/example/parkshare/internal/application"
)

// BreakerConfig configures the circuit around a downstream notifier.
type BreakerConfig struct {
	Name string
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold uint32
	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration
}

// DefaultBreakerConfig trips after five consecutive failures for thirty seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{Name: name, FailureThreshold: 5, Timeout: 30 * time.Second}
}

// BreakerNotifier stops calling a failing notifier until its circuit half-opens.
type BreakerNotifier struct {
	next    application.Notifier
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerNotifier wraps next in a circuit breaker.
func NewBreakerNotifier(next application.Notifier, config BreakerConfig, logger *slog.Logger) *BreakerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notifier circuit changed state",
				"notifier", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerNotifier{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// NotifyBooking implements application.Notifier. While the circuit is open it
// returns gobreaker.ErrOpenState without calling the wrapped notifier.
func (n *BreakerNotifier) NotifyBooking(ctx context.Context, event application.BookingEvent) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.next.NotifyBooking(ctx, event)
	})
	return err
}

// State reports the current circuit state.
func (n *BreakerNotifier) State() gobreaker.State {
	return n.breaker.State()
}
