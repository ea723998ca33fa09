package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/normalize"
	"RecallWatch/internal/ports"
)

// AlertGenerator creates the alerts a committed recall set calls for.
type AlertGenerator interface {
	Generate(ctx context.Context, scope ports.CommitScope, now time.Time) (int, error)
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source    ports.RecallSource
	Store     ports.Store
	Generator AlertGenerator
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Pipeline implements one recall ingestion run: collect, normalize, commit.
type Pipeline struct {
	source    ports.RecallSource
	store     ports.Store
	generator AlertGenerator
	logger    *slog.Logger
	clock     func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		source:    deps.Source,
		store:     deps.Store,
		generator: deps.Generator,
		logger:    logger,
		clock:     clock,
	}
}

// Execute runs the pipeline for run and returns it in a terminal state.
// The error is non-nil exactly when the run ends Failed.
func (p *Pipeline) Execute(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error) {
	if p.store == nil {
		return p.fail(run, fmt.Errorf("recall store is not configured: %w", domain.ErrStoreUnavailable))
	}

	var records []domain.RecallRecord
	failed := 0
	if p.source != nil {
		outcomes := p.source.Collect(ctx, run.StartedAt)
		for _, outcome := range outcomes {
			result := domain.SourceResult{Authority: outcome.Authority}
			if outcome.Err != nil {
				failed++
				result.Error = outcome.Err.Error()
				run.Sources = append(run.Sources, result)
				continue
			}

			result.Fetched = len(outcome.Batch.Records)
			for _, perr := range outcome.Batch.Dropped {
				p.logDrop(perr)
				result.Dropped++
			}
			for _, raw := range outcome.Batch.Records {
				recs, err := normalize.Normalize(raw)
				if err != nil {
					p.logDrop(err)
					result.Dropped++
					continue
				}
				result.Records += len(recs)
				records = append(records, recs...)
			}

			run.Fetched += result.Fetched
			run.Dropped += result.Dropped
			run.Sources = append(run.Sources, result)
		}

		if len(outcomes) > 0 && failed == len(outcomes) {
			return p.fail(run, errors.New("every source failed"))
		}
	}

	var inserted, updated, skipped, alerts int
	err := p.store.Commit(ctx, func(ctx context.Context, scope ports.CommitScope) error {
		inserted, updated, skipped, alerts = 0, 0, 0, 0

		for _, rec := range records {
			res, err := scope.UpsertRecall(ctx, rec)
			if errors.Is(err, domain.ErrConstraintViolation) {
				skipped++
				p.logger.Warn("recall skipped after constraint violation",
					"authority", rec.Source, "upc", rec.ProductID,
					"recall_date", rec.RecallDate.Format(time.DateOnly), "error", err)
				continue
			}
			if err != nil {
				return fmt.Errorf("upsert %s/%s: %w", rec.ProductID, rec.RecallDate.Format(time.DateOnly), err)
			}
			if res.Inserted {
				inserted++
			} else {
				updated++
			}
		}

		if p.generator == nil {
			return nil
		}
		created, err := p.generator.Generate(ctx, scope, p.clock().UTC())
		if err != nil {
			return fmt.Errorf("generate alerts: %w", err)
		}
		alerts = created
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return p.fail(run, err)
	}

	run.Inserted = inserted
	run.Updated = updated
	run.Upserted = inserted + updated
	run.AlertsCreated = alerts
	run.Status = domain.RunSucceeded
	if failed > 0 {
		run.Status = domain.RunPartiallyFailed
	}
	run.FinishedAt = p.clock().UTC()

	p.debug("commit finished", "records", len(records), "skipped", skipped)
	return run, nil
}

func (p *Pipeline) fail(run domain.PipelineRun, err error) (domain.PipelineRun, error) {
	run.Status = domain.RunFailed
	run.Error = err.Error()
	run.Upserted, run.Inserted, run.Updated, run.AlertsCreated = 0, 0, 0, 0
	run.FinishedAt = p.clock().UTC()
	return run, err
}

func (p *Pipeline) logDrop(err error) {
	var perr *domain.ParseError
	if errors.As(err, &perr) {
		p.logger.Warn("record dropped", "authority", perr.Authority, "ref", perr.Ref, "reason", perr.Reason)
		return
	}
	p.logger.Warn("record dropped", "error", err)
}

func (p *Pipeline) debug(msg string, args ...any) {
	p.logger.Debug(msg, args...)
}
