// Package matcher turns stored recalls and saved items into user alerts.
//
// Matching joins on canonical product identifiers, so a saved EAN-13 code
// with a leading zero matches the stored UPC-A form. Alerts are keyed by
// (user, recall) so repeated runs never duplicate them, and an update to an
// existing recall does not alert again.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/normalize"
	"RecallWatch/internal/ports"
)

// Plan computes the alerts still missing for a snapshot. Recalls and items are
// joined on canonical product identifier; pairs present in existing are skipped. The
// result is ordered by user then recall id.
func Plan(recalls []domain.RecallRecord, items []domain.SavedItem, existing map[domain.AlertKey]struct{}, now time.Time) []domain.Alert {
	users := make(map[string][]string)
	for _, item := range items {
		id := normalize.CanonicalProductID(item.ProductID)
		users[id] = append(users[id], item.UserID)
	}

	planned := make(map[domain.AlertKey]struct{})
	var alerts []domain.Alert
	for _, rec := range recalls {
		for _, userID := range users[rec.ProductID] {
			key := domain.AlertKey{UserID: userID, RecallID: rec.ID}
			if _, ok := existing[key]; ok {
				continue
			}
			if _, ok := planned[key]; ok {
				continue
			}
			planned[key] = struct{}{}
			alerts = append(alerts, domain.Alert{
				UserID:    userID,
				RecallID:  rec.ID,
				ProductID: rec.ProductID,
				CreatedAt: now,
			})
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].UserID != alerts[j].UserID {
			return alerts[i].UserID < alerts[j].UserID
		}
		return alerts[i].RecallID < alerts[j].RecallID
	})
	return alerts
}

// Generator writes planned alerts through a commit scope.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator wires a logger; nil discards output.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Generator{logger: logger}
}

// Generate creates every missing alert and returns how many rows were
// actually inserted. It must run after all upserts of the run.
func (g *Generator) Generate(ctx context.Context, scope ports.CommitScope, now time.Time) (int, error) {
	items, err := scope.SavedItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("read saved items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	productIDs := distinctProducts(items)
	recalls, err := scope.RecallsByProduct(ctx, productIDs)
	if err != nil {
		return 0, fmt.Errorf("read recalls for saved items: %w", err)
	}
	if len(recalls) == 0 {
		return 0, nil
	}

	recallIDs := make([]int64, 0, len(recalls))
	for _, rec := range recalls {
		recallIDs = append(recallIDs, rec.ID)
	}
	existing, err := scope.AlertKeys(ctx, recallIDs)
	if err != nil {
		return 0, fmt.Errorf("read alert keys: %w", err)
	}

	plan := Plan(recalls, items, existing, now)
	created := 0
	for _, alert := range plan {
		ok, err := scope.InsertAlert(ctx, alert)
		if err != nil {
			return created, fmt.Errorf("insert alert user=%s recall=%d: %w", alert.UserID, alert.RecallID, err)
		}
		if ok {
			created++
		}
	}

	g.logger.Debug("alerts generated",
		"saved_items", len(items), "matched_recalls", len(recalls), "planned", len(plan), "created", created)
	return created, nil
}

func distinctProducts(items []domain.SavedItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		id := normalize.CanonicalProductID(item.ProductID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
