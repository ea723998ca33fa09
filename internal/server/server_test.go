package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecallWatch/internal/domain"
)

var recalledAt = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

type fakeRunner struct {
	run     domain.PipelineRun
	err     error
	history []domain.PipelineRun
	got     []domain.RunTrigger
}

func (f *fakeRunner) Trigger(_ context.Context, trigger domain.RunTrigger) (domain.PipelineRun, error) {
	f.got = append(f.got, trigger)
	return f.run, f.err
}

func (f *fakeRunner) Status() domain.RunStatus { return domain.RunIdle }

func (f *fakeRunner) History() []domain.PipelineRun { return f.history }

type fakeAlerts struct {
	views    map[string][]domain.AlertView
	pending  []domain.Alert
	viewed   map[int64]bool
	notified map[int64]bool
}

func newFakeAlerts() *fakeAlerts {
	rec := domain.RecallRecord{
		ID: 7, ProductID: "041190460002", ProductName: "Granola Bar", RecallDate: recalledAt,
		HazardTier: domain.TierI, Source: domain.AuthorityFDA,
	}
	alert := domain.Alert{ID: 1, UserID: "u1", RecallID: 7, ProductID: "041190460002"}
	return &fakeAlerts{
		views:    map[string][]domain.AlertView{"u1": {{Alert: alert, Recall: rec}}},
		pending:  []domain.Alert{alert},
		viewed:   map[int64]bool{},
		notified: map[int64]bool{},
	}
}

func (f *fakeAlerts) AlertsForUser(_ context.Context, userID string) ([]domain.AlertView, error) {
	return f.views[userID], nil
}

func (f *fakeAlerts) MarkViewed(_ context.Context, id int64) error {
	if id != 1 {
		return fmt.Errorf("alert %d: %w", id, domain.ErrNotFound)
	}
	f.viewed[id] = true
	return nil
}

func (f *fakeAlerts) PendingAlerts(_ context.Context, limit int) ([]domain.Alert, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeAlerts) MarkNotified(_ context.Context, id int64) error {
	if id != 1 {
		return fmt.Errorf("alert %d: %w", id, domain.ErrNotFound)
	}
	f.notified[id] = true
	return nil
}

type fakeRecalls struct{}

func (fakeRecalls) ListRecalls(_ context.Context, limit int) ([]domain.RecallRecord, error) {
	return []domain.RecallRecord{{ID: 7, ProductID: "041190460002", RecallDate: recalledAt, HazardTier: domain.TierII}}, nil
}

func (fakeRecalls) LatestRecall(_ context.Context, upc string) (domain.RecallRecord, error) {
	if upc != "041190460002" {
		return domain.RecallRecord{}, domain.ErrNotFound
	}
	return domain.RecallRecord{ID: 7, ProductID: upc, RecallDate: recalledAt, HazardTier: domain.TierI}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func serve(t *testing.T, deps Deps, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	New(deps).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRefreshReturnsSummary(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{run: domain.PipelineRun{
		ID: "r1", Trigger: domain.TriggerManual, Status: domain.RunSucceeded,
		Fetched: 3, Upserted: 2, Inserted: 1, Updated: 1, AlertsCreated: 1,
		StartedAt: recalledAt, FinishedAt: recalledAt.Add(time.Second),
	}}

	rec := serve(t, Deps{Runner: runner}, http.MethodPost, "/admin/refresh-recalls")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.RunTrigger{domain.TriggerManual}, runner.got)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "r1", body["run_id"])
	assert.Equal(t, "succeeded", body["status"])
	assert.EqualValues(t, 3, body["fetched"])
	assert.EqualValues(t, 2, body["upserted"])
	assert.EqualValues(t, 1, body["alerts_created"])
	assert.Equal(t, []any{}, body["sources"])
}

func TestRefreshAlreadyRunning(t *testing.T) {
	t.Parallel()

	rec := serve(t, Deps{Runner: &fakeRunner{err: domain.ErrAlreadyRunning}}, http.MethodPost, "/admin/refresh-recalls")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"AlreadyRunning"}`, rec.Body.String())
}

func TestRefreshFailedRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		run: domain.PipelineRun{ID: "r2", Status: domain.RunFailed, Error: "store unavailable"},
		err: domain.ErrStoreUnavailable,
	}
	rec := serve(t, Deps{Runner: runner}, http.MethodPost, "/admin/refresh-recalls")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
}

func TestRunsFallsBackToHistory(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{history: []domain.PipelineRun{{ID: "b"}, {ID: "a"}}}
	rec := serve(t, Deps{Runner: runner}, http.MethodGet, "/admin/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "b", body[0]["run_id"])

	bad := serve(t, Deps{Runner: runner}, http.MethodGet, "/admin/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestUserAlerts(t *testing.T) {
	t.Parallel()

	deps := Deps{Alerts: newFakeAlerts()}
	rec := serve(t, deps, http.MethodGet, "/alerts/u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []alertBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "041190460002", body[0].UPC)
	require.NotNil(t, body[0].Recall)
	assert.Equal(t, "2025-01-15", body[0].Recall.RecallDate)
	assert.Equal(t, "Class I", body[0].Recall.HazardTier)

	empty := serve(t, deps, http.MethodGet, "/alerts/nobody")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `[]`, empty.Body.String())
}

func TestMarkViewedAndNotified(t *testing.T) {
	t.Parallel()

	alerts := newFakeAlerts()
	deps := Deps{Alerts: alerts}

	assert.Equal(t, http.StatusNoContent, serve(t, deps, http.MethodPatch, "/alerts/1/viewed").Code)
	assert.True(t, alerts.viewed[1])
	assert.Equal(t, http.StatusNoContent, serve(t, deps, http.MethodPatch, "/alerts/1/notified").Code)
	assert.True(t, alerts.notified[1])

	assert.Equal(t, http.StatusNotFound, serve(t, deps, http.MethodPatch, "/alerts/99/viewed").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, deps, http.MethodPatch, "/alerts/abc/viewed").Code)
}

func TestPendingAlerts(t *testing.T) {
	t.Parallel()

	rec := serve(t, Deps{Alerts: newFakeAlerts()}, http.MethodGet, "/alerts/pending?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []alertBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.False(t, body[0].Notified)
	assert.Nil(t, body[0].Recall)
}

func TestRecallEndpoints(t *testing.T) {
	t.Parallel()

	deps := Deps{Recalls: fakeRecalls{}}

	list := serve(t, deps, http.MethodGet, "/recalls")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"hazard_tier":"Class II"`)

	hit := serve(t, deps, http.MethodGet, "/recalls/check/041190460002")
	require.Equal(t, http.StatusOK, hit.Code)
	assert.Contains(t, hit.Body.String(), `"is_recalled":true`)

	miss := serve(t, deps, http.MethodGet, "/recalls/check/000000000000")
	require.Equal(t, http.StatusOK, miss.Code)
	assert.JSONEq(t, `{"upc":"000000000000","is_recalled":false}`, miss.Body.String())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ok := serve(t, Deps{Store: fakePinger{}, Runner: &fakeRunner{}}, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.JSONEq(t, `{"status":"ok","run_status":"idle"}`, ok.Body.String())

	down := serve(t, Deps{Store: fakePinger{err: errors.New("dial tcp: refused")}}, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
}
