package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/ports"
)

// ControllerDeps wires the run controller.
type ControllerDeps struct {
	Pipeline    *Pipeline
	Runs        ports.RunRepository
	Reporter    ports.RunReporter
	Logger      *slog.Logger
	Clock       func() time.Time
	HistorySize int
}

// Controller guarantees at most one pipeline run in flight. Concurrent
// triggers are rejected with domain.ErrAlreadyRunning, never queued.
type Controller struct {
	pipeline *Pipeline
	runs     ports.RunRepository
	reporter ports.RunReporter
	logger   *slog.Logger
	clock    func() time.Time
	limit    int

	running atomic.Bool

	mu      sync.Mutex
	current *domain.PipelineRun
	history []domain.PipelineRun
}

// NewController builds a controller; HistorySize defaults to 20.
func NewController(deps ControllerDeps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	limit := deps.HistorySize
	if limit <= 0 {
		limit = 20
	}
	return &Controller{
		pipeline: deps.Pipeline,
		runs:     deps.Runs,
		reporter: deps.Reporter,
		logger:   logger,
		clock:    clock,
		limit:    limit,
	}
}

// Trigger starts a run and blocks until it reaches a terminal state. The
// returned error is domain.ErrAlreadyRunning when another run is in flight,
// or the cause of a Failed run; the summary is returned either way.
func (c *Controller) Trigger(ctx context.Context, trigger domain.RunTrigger) (domain.PipelineRun, error) {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Info("trigger rejected", "trigger", trigger, "reason", domain.ErrAlreadyRunning)
		return domain.PipelineRun{}, domain.ErrAlreadyRunning
	}
	defer c.running.Store(false)

	run := domain.PipelineRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    domain.RunRunning,
		StartedAt: c.clock().UTC(),
	}
	c.setCurrent(&run)
	c.persist(ctx, run)
	c.logger.Info("run started", "run_id", run.ID, "trigger", trigger)

	finished, err := c.pipeline.Execute(ctx, run)

	c.finish(finished)
	c.persist(ctx, finished)
	c.report(ctx, finished)

	attrs := []any{
		"run_id", finished.ID, "status", finished.Status, "fetched", finished.Fetched,
		"dropped", finished.Dropped, "inserted", finished.Inserted, "updated", finished.Updated,
		"alerts_created", finished.AlertsCreated, "elapsed", finished.Duration(),
	}
	if err != nil {
		c.logger.Error("run failed", append(attrs, "error", err)...)
	} else {
		c.logger.Info("run finished", attrs...)
	}
	return finished, err
}

// Status is Running while a run is in flight, else the last terminal state,
// or Idle before the first run.
func (c *Controller) Status() domain.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return domain.RunRunning
	}
	if len(c.history) == 0 {
		return domain.RunIdle
	}
	return c.history[0].Status
}

// History returns retained finished runs, newest first.
func (c *Controller) History() []domain.PipelineRun {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.PipelineRun, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Controller) setCurrent(run *domain.PipelineRun) {
	c.mu.Lock()
	c.current = run
	c.mu.Unlock()
}

func (c *Controller) finish(run domain.PipelineRun) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
	c.history = append([]domain.PipelineRun{run}, c.history...)
	if len(c.history) > c.limit {
		c.history = c.history[:c.limit]
	}
}

// persist stores the run snapshot. Failures are logged only.
func (c *Controller) persist(ctx context.Context, run domain.PipelineRun) {
	if c.runs == nil {
		return
	}
	if err := c.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("persist run", "run_id", run.ID, "status", run.Status, "error", err)
	}
}

func (c *Controller) report(ctx context.Context, run domain.PipelineRun) {
	if c.reporter == nil || run.Status == domain.RunSucceeded {
		return
	}
	if err := c.reporter.ReportRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("report run", "run_id", run.ID, "error", err)
	}
}
