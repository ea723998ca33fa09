package domain

import "time"

// RunStatus enumerates the pipeline run lifecycle.
type RunStatus string

const (
	RunIdle            RunStatus = "idle"
	RunRunning         RunStatus = "running"
	RunSucceeded       RunStatus = "succeeded"
	RunPartiallyFailed RunStatus = "partially_failed"
	RunFailed          RunStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunPartiallyFailed, RunFailed:
		return true
	default:
		return false
	}
}

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
	TriggerStartup  RunTrigger = "startup"
)

// SourceResult is one authority's contribution to a run.
type SourceResult struct {
	Authority Authority `json:"authority"`
	Fetched   int       `json:"fetched"`
	Dropped   int       `json:"dropped"`
	Records   int       `json:"records"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the authority contributed nothing because of an error.
func (s SourceResult) Failed() bool {
	return s.Error != ""
}

// PipelineRun summarises one execution of the ingestion pipeline.
type PipelineRun struct {
	ID            string
	Trigger       RunTrigger
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	Sources       []SourceResult
	Fetched       int
	Dropped       int
	Upserted      int
	Inserted      int
	Updated       int
	AlertsCreated int
	Error         string
}

// Duration is the wall time of a finished run.
func (r PipelineRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Window bounds the recall dates requested from an authority.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window, by calendar day.
func (w Window) Contains(t time.Time) bool {
	day := Day(t)
	return !day.Before(Day(w.From)) && !day.After(Day(w.To))
}
