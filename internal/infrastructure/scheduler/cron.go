package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"RecallWatch/internal/logging"
	"RecallWatch/internal/ports"
)

// CronScheduler fires a job on a fixed interval using robfig/cron.
type CronScheduler struct {
	interval time.Duration
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for the given interval. Intervals are
// rounded to whole seconds by cron; anything below one second runs every second.
func NewCronScheduler(interval time.Duration, location *time.Location, logger *slog.Logger) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CronScheduler{interval: interval, location: location, logger: logger}
}

// Start registers job and begins ticking. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return errors.New("job must not be nil")
	}
	if c.interval <= 0 {
		return fmt.Errorf("invalid interval %s", c.interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(c.logger.Handler(), slog.LevelError))
	runner := cron.New(
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	runner.Schedule(cron.Every(c.interval), cron.FuncJob(func() {
		job(time.Now().In(c.location))
	}))
	runner.Start()
	c.cron = runner

	c.logger.Info("scheduler started", "interval", c.interval, "location", c.location.String())

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts the schedule and waits for a running job until ctx is done.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}
