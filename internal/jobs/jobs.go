// Package jobs runs periodic maintenance tasks in the background.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// SessionPruner deletes sessions that expired or were revoked.
type SessionPruner interface {
	PruneExpiredSessions(ctx context.Context) (int64, error)
}

// Runner owns a gocron scheduler and the jobs registered on it.
type Runner struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRunner creates a stopped runner.
func NewRunner(logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("jobs: create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{scheduler: scheduler, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// SchedulePrune registers session pruning every interval. The first run
// happens immediately once the runner starts. Overlapping runs are skipped.
func (r *Runner) SchedulePrune(pruner SessionPruner, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("jobs: prune interval must be positive, got %s", interval)
	}
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.prune(pruner) }),
		gocron.WithName("prune-sessions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("jobs: schedule session pruning: %w", err)
	}
	return nil
}

func (r *Runner) prune(pruner SessionPruner) {
	removed, err := pruner.PruneExpiredSessions(r.ctx)
	if err != nil {
		r.logger.Error("session pruning failed", "job", "prune-sessions", "error", err)
		return
	}
	r.logger.Debug("session pruning finished", "job", "prune-sessions", "removed", removed)
}

// Start begins executing registered jobs.
func (r *Runner) Start() {
	r.scheduler.Start()
}

// Shutdown cancels running jobs and waits for them to return.
func (r *Runner) Shutdown() error {
	r.cancel()
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("jobs: shutdown: %w", err)
	}
	return nil
}
