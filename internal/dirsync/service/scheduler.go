package service

import (
	"context"
	"log/slog"
	"time"

	dErrors "hive/pkg/domain-errors"
)

// Scheduler triggers periodic sync runs. A tick that collides with a run
// already in progress is skipped silently; every other failure is logged
// and the schedule keeps going.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. A non-positive interval disables it.
func NewScheduler(service *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{service: service, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. Suitable for an errgroup goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("scheduled sync disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("scheduled sync enabled", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			run, err := s.service.TriggerSync(ctx, "scheduler")
			switch {
			case dErrors.HasCode(err, dErrors.CodeSyncAlreadyRunning):
				s.logger.Debug("scheduled sync skipped, run in progress")
			case err != nil:
				s.logger.Error("scheduled sync failed", slog.Any("error", err))
			default:
				s.logger.Info("scheduled sync finished",
					slog.String("run_id", run.ID.String()), slog.String("status", string(run.Status)))
			}
		}
	}
}
