package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecallWatch/internal/domain"
)

var now = time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)

func TestPlanJoinsOnProductID(t *testing.T) {
	t.Parallel()

	recalls := []domain.RecallRecord{
		{ID: 7, ProductID: "041190460002"},
		{ID: 3, ProductID: "012345678905"},
		{ID: 9, ProductID: "041190460002"},
	}
	items := []domain.SavedItem{
		{UserID: "bob", ProductID: "041190460002"},
		{UserID: "alice", ProductID: "041190460002"},
		{UserID: "alice", ProductID: "999999999999"},
	}

	plan := Plan(recalls, items, nil, now)

	got := make([]domain.AlertKey, 0, len(plan))
	for _, a := range plan {
		got = append(got, a.Key())
		assert.Equal(t, "041190460002", a.ProductID)
		assert.Equal(t, now, a.CreatedAt)
	}
	assert.Equal(t, []domain.AlertKey{
		{UserID: "alice", RecallID: 7},
		{UserID: "alice", RecallID: 9},
		{UserID: "bob", RecallID: 7},
		{UserID: "bob", RecallID: 9},
	}, got)
}

func TestPlanSkipsExistingAndDuplicates(t *testing.T) {
	t.Parallel()

	recalls := []domain.RecallRecord{{ID: 1, ProductID: "041190460002"}}
	items := []domain.SavedItem{
		{UserID: "u1", ProductID: "041190460002"},
		{UserID: "u1", ProductID: "041190460002"},
		{UserID: "u2", ProductID: "041190460002"},
	}
	existing := map[domain.AlertKey]struct{}{{UserID: "u2", RecallID: 1}: {}}

	plan := Plan(recalls, items, existing, now)
	require.Len(t, plan, 1)
	assert.Equal(t, domain.AlertKey{UserID: "u1", RecallID: 1}, plan[0].Key())
}

func TestPlanMatchesEANFormOfSavedItem(t *testing.T) {
	t.Parallel()

	recalls := []domain.RecallRecord{{ID: 4, ProductID: "041190460002"}}
	items := []domain.SavedItem{{UserID: "u1", ProductID: "0041190460002"}}

	plan := Plan(recalls, items, nil, now)
	require.Len(t, plan, 1)
	assert.Equal(t, domain.AlertKey{UserID: "u1", RecallID: 4}, plan[0].Key())
	assert.Equal(t, "041190460002", plan[0].ProductID)
	assert.Equal(t, []string{"041190460002"}, distinctProducts(items))
}

func TestPlanEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Plan(nil, []domain.SavedItem{{UserID: "u1", ProductID: "1"}}, nil, now))
	assert.Empty(t, Plan([]domain.RecallRecord{{ID: 1, ProductID: "1"}}, nil, nil, now))
}

type memoryScope struct {
	recalls  []domain.RecallRecord
	items    []domain.SavedItem
	alerts   map[domain.AlertKey]domain.Alert
	failWith error
	queried  []string
}

func newMemoryScope() *memoryScope {
	return &memoryScope{alerts: map[domain.AlertKey]domain.Alert{}}
}

func (m *memoryScope) UpsertRecall(_ context.Context, rec domain.RecallRecord) (domain.UpsertResult, error) {
	rec.ID = int64(len(m.recalls) + 1)
	m.recalls = append(m.recalls, rec)
	return domain.UpsertResult{ID: rec.ID, Inserted: true}, nil
}

func (m *memoryScope) RecallsByProduct(_ context.Context, productIDs []string) ([]domain.RecallRecord, error) {
	m.queried = productIDs
	want := map[string]bool{}
	for _, id := range productIDs {
		want[id] = true
	}
	var out []domain.RecallRecord
	for _, rec := range m.recalls {
		if want[rec.ProductID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryScope) SavedItems(context.Context) ([]domain.SavedItem, error) {
	return m.items, nil
}

func (m *memoryScope) AlertKeys(_ context.Context, recallIDs []int64) (map[domain.AlertKey]struct{}, error) {
	keys := map[domain.AlertKey]struct{}{}
	for key := range m.alerts {
		for _, id := range recallIDs {
			if key.RecallID == id {
				keys[key] = struct{}{}
			}
		}
	}
	return keys, nil
}

func (m *memoryScope) InsertAlert(_ context.Context, alert domain.Alert) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	if _, ok := m.alerts[alert.Key()]; ok {
		return false, nil
	}
	m.alerts[alert.Key()] = alert
	return true, nil
}

func TestGenerateIsExactlyOnce(t *testing.T) {
	t.Parallel()

	scope := newMemoryScope()
	scope.items = []domain.SavedItem{
		{UserID: "u1", ProductID: "041190460002"},
		{UserID: "u2", ProductID: "012345678905"},
	}
	_, _ = scope.UpsertRecall(context.Background(), domain.RecallRecord{ProductID: "041190460002"})

	gen := NewGenerator(nil)
	created, err := gen.Generate(context.Background(), scope, now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, []string{"012345678905", "041190460002"}, scope.queried)

	created, err = gen.Generate(context.Background(), scope, now)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, scope.alerts, 1)
}

func TestGenerateWithoutSavedItems(t *testing.T) {
	t.Parallel()

	scope := newMemoryScope()
	_, _ = scope.UpsertRecall(context.Background(), domain.RecallRecord{ProductID: "041190460002"})

	created, err := NewGenerator(nil).Generate(context.Background(), scope, now)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Nil(t, scope.queried)
}

func TestGeneratePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	scope := newMemoryScope()
	scope.items = []domain.SavedItem{{UserID: "u1", ProductID: "041190460002"}}
	_, _ = scope.UpsertRecall(context.Background(), domain.RecallRecord{ProductID: "041190460002"})
	scope.failWith = domain.ErrStoreUnavailable

	_, err := NewGenerator(nil).Generate(context.Background(), scope, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}
