package storage

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS recalls (
		id BIGSERIAL PRIMARY KEY,
		upc TEXT NOT NULL,
		product_name TEXT NOT NULL,
		brand_name TEXT NOT NULL DEFAULT '',
		recall_date DATE NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		hazard_tier TEXT NOT NULL,
		firm_name TEXT NOT NULL DEFAULT '',
		distribution TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		UNIQUE (upc, recall_date)
	)`,
	`CREATE TABLE IF NOT EXISTS saved_items (
		user_id TEXT NOT NULL,
		upc TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, upc)
	)`,
	`CREATE INDEX IF NOT EXISTS saved_items_upc_idx ON saved_items (upc)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		recall_id BIGINT NOT NULL REFERENCES recalls (id) ON DELETE CASCADE,
		upc TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		viewed BOOLEAN NOT NULL DEFAULT FALSE,
		notified BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (user_id, recall_id)
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_recall_idx ON alerts (recall_id)`,
	`CREATE INDEX IF NOT EXISTS alerts_pending_idx ON alerts (notified, id)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		fetched INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0,
		upserted INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		alerts_created INTEGER NOT NULL DEFAULT 0,
		sources TEXT NOT NULL DEFAULT '[]',
		error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_runs_started_idx ON pipeline_runs (started_at)`,
}

// SQLite only parses values back into time.Time for DATE, DATETIME and
// TIMESTAMP declared columns.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS recalls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upc TEXT NOT NULL,
		product_name TEXT NOT NULL,
		brand_name TEXT NOT NULL DEFAULT '',
		recall_date DATE NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		hazard_tier TEXT NOT NULL,
		firm_name TEXT NOT NULL DEFAULT '',
		distribution TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		UNIQUE (upc, recall_date)
	)`,
	`CREATE TABLE IF NOT EXISTS saved_items (
		user_id TEXT NOT NULL,
		upc TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, upc)
	)`,
	`CREATE INDEX IF NOT EXISTS saved_items_upc_idx ON saved_items (upc)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		recall_id INTEGER NOT NULL REFERENCES recalls (id) ON DELETE CASCADE,
		upc TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		viewed BOOLEAN NOT NULL DEFAULT 0,
		notified BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (user_id, recall_id)
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_recall_idx ON alerts (recall_id)`,
	`CREATE INDEX IF NOT EXISTS alerts_pending_idx ON alerts (notified, id)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		fetched INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0,
		upserted INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		alerts_created INTEGER NOT NULL DEFAULT 0,
		sources TEXT NOT NULL DEFAULT '[]',
		error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_runs_started_idx ON pipeline_runs (started_at)`,
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (r *Repository) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if r.driver == DriverSQLite {
		statements = sqliteSchema
	}

	for i, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return classify(fmt.Sprintf("migrate step %d", i+1), err)
		}
	}
	return nil
}
