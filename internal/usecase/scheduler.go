package usecase

import (
	"context"
	"log/slog"
	"time"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

// FleetRunner runs every active topic once.
type FleetRunner interface {
	RunAll(ctx context.Context) (domain.FleetSummary, error)
}

// Scheduler wires the cron driver with the fleet run.
type Scheduler struct {
	driver ports.Scheduler
	runner FleetRunner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring fleet runs.
func NewScheduler(driver ports.Scheduler, runner FleetRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, runner: runner, logger: logging.Component(logger, "scheduler")}
}

// Start registers the fleet run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run triggered", "at", trigger)
		summary, err := s.runner.RunAll(ctx)
		if err != nil {
			s.logger.Error("scheduled run failed", "error", err)
			return
		}
		s.logger.Info("scheduled run done", "run_id", summary.RunID, "failed", len(summary.Failures()))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
