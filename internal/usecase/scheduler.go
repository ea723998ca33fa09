package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/ports"
)

// Scheduler wires the periodic driver with the run controller.
type Scheduler struct {
	driver     ports.Scheduler
	controller *Controller
	runOnStart bool
	logger     *slog.Logger

	startup sync.WaitGroup
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, controller *Controller, runOnStart bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, controller: controller, runOnStart: runOnStart, logger: logger}
}

// Start registers the controller with the driver and optionally kicks off
// one run in the background right away.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.controller == nil {
		return nil
	}

	if err := s.driver.Start(ctx, func(time.Time) {
		s.fire(ctx, domain.TriggerSchedule)
	}); err != nil {
		return err
	}

	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.fire(ctx, domain.TriggerStartup)
		}()
	}
	return nil
}

// Stop tears down the underlying scheduler and waits for the start-up run,
// if any, until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	stopErr := s.driver.Stop(ctx)

	done := make(chan struct{})
	go func() {
		s.startup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return stopErr
	case <-ctx.Done():
		return errors.Join(stopErr, fmt.Errorf("wait for start-up run: %w", ctx.Err()))
	}
}

func (s *Scheduler) fire(ctx context.Context, trigger domain.RunTrigger) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.controller.Trigger(ctx, trigger); errors.Is(err, domain.ErrAlreadyRunning) {
		s.logger.Info("scheduled run skipped", "trigger", trigger, "reason", err)
	}
}
