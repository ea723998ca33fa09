package ports

import (
	"context"
	"time"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/source"
)

// RecallSource pulls raw recall batches from every enabled authority.
type RecallSource interface {
	Collect(ctx context.Context, now time.Time) []source.Outcome
}

// RecallStore persists canonical recalls idempotently.
type RecallStore interface {
	UpsertRecall(ctx context.Context, rec domain.RecallRecord) (domain.UpsertResult, error)
	RecallsByProduct(ctx context.Context, productIDs []string) ([]domain.RecallRecord, error)
}

// SavedItemIndex is the read-only relation of users to tracked products.
type SavedItemIndex interface {
	SavedItems(ctx context.Context) ([]domain.SavedItem, error)
}

// AlertWriter creates alerts; InsertAlert is insert-if-absent on (user, recall).
type AlertWriter interface {
	AlertKeys(ctx context.Context, recallIDs []int64) (map[domain.AlertKey]struct{}, error)
	InsertAlert(ctx context.Context, alert domain.Alert) (bool, error)
}

// CommitScope is the transactional view a run writes through.
type CommitScope interface {
	RecallStore
	SavedItemIndex
	AlertWriter
}

// Store opens commit scopes. Commit rolls everything back if fn fails.
type Store interface {
	Ping(ctx context.Context) error
	Commit(ctx context.Context, fn func(ctx context.Context, scope CommitScope) error) error
}

// RunRepository keeps finished and in-flight runs for diagnostics.
type RunRepository interface {
	SaveRun(ctx context.Context, run domain.PipelineRun) error
	ListRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error)
}

// AlertRepository serves the UI and notification dispatcher collaborators.
type AlertRepository interface {
	AlertsForUser(ctx context.Context, userID string) ([]domain.AlertView, error)
	MarkViewed(ctx context.Context, alertID int64) error
	PendingAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
	MarkNotified(ctx context.Context, alertID int64) error
}

// RecallReader serves read-only recall lookups.
type RecallReader interface {
	ListRecalls(ctx context.Context, limit int) ([]domain.RecallRecord, error)
	LatestRecall(ctx context.Context, productID string) (domain.RecallRecord, error)
}

// RunReporter tells operators about degraded runs.
type RunReporter interface {
	ReportRun(ctx context.Context, run domain.PipelineRun) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
