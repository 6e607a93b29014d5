package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the pipeline on a fixed interval. A Kick channel lets the
// filesystem watcher trigger an extra run between ticks.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	logger   *slog.Logger
	kick     chan struct{}
}

// NewScheduler creates a scheduler around a runner.
func NewScheduler(runner *Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With(slog.String("component", "scheduler")),
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an extra run. Requests arriving while one is already
// queued coalesce.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start runs the pipeline immediately, then on every interval tick or kick,
// until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", slog.String("interval", s.interval.String()))

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.kick:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("scheduled run failed", slog.Any("error", err))
	}
}
