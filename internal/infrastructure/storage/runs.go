package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"RecallWatch/internal/domain"
)

var runColumns = []string{
	"id", "triggered_by", "status", "started_at", "finished_at", "fetched", "dropped",
	"upserted", "inserted", "updated", "alerts_created", "sources", "error",
}

// SaveRun inserts or overwrites the stored snapshot of a run.
func (r *Repository) SaveRun(ctx context.Context, run domain.PipelineRun) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("encode run sources: %w", err)
	}
	if run.Sources == nil {
		sources = []byte("[]")
	}

	var finished sql.NullTime
	if run.Status.Terminal() && !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: stamp(run.FinishedAt), Valid: true}
	}

	query, args, err := r.sb.Insert("pipeline_runs").
		Columns(runColumns...).
		Values(run.ID, string(run.Trigger), string(run.Status), stamp(run.StartedAt), finished,
			run.Fetched, run.Dropped, run.Upserted, run.Inserted, run.Updated, run.AlertsCreated,
			string(sources), run.Error).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			fetched = EXCLUDED.fetched,
			dropped = EXCLUDED.dropped,
			upserted = EXCLUDED.upserted,
			inserted = EXCLUDED.inserted,
			updated = EXCLUDED.updated,
			alerts_created = EXCLUDED.alerts_created,
			sources = EXCLUDED.sources,
			error = EXCLUDED.error`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save run: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return classify("save run", err)
	}
	return nil
}

// ListRuns returns stored runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	query, args, err := r.sb.Select(runColumns...).
		From("pipeline_runs").
		OrderBy("started_at DESC").
		Limit(uint64(clampLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list runs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query runs", err)
	}
	defer rows.Close()

	runs := []domain.PipelineRun{}
	for rows.Next() {
		var (
			run      domain.PipelineRun
			trigger  string
			status   string
			finished sql.NullTime
			sources  string
		)
		if err := rows.Scan(&run.ID, &trigger, &status, &run.StartedAt, &finished, &run.Fetched, &run.Dropped,
			&run.Upserted, &run.Inserted, &run.Updated, &run.AlertsCreated, &sources, &run.Error); err != nil {
			return nil, classify("scan run", err)
		}

		run.Trigger = domain.RunTrigger(trigger)
		run.Status = domain.RunStatus(status)
		run.StartedAt = run.StartedAt.UTC()
		if finished.Valid {
			run.FinishedAt = finished.Time.UTC()
		}
		if err := json.Unmarshal([]byte(sources), &run.Sources); err != nil {
			return nil, fmt.Errorf("decode run %s sources: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows iteration", err)
	}
	return runs, nil
}
