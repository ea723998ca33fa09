package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"RecallWatch/internal/domain"
)

var alertColumns = []string{"id", "user_id", "recall_id", "upc", "created_at", "viewed", "notified"}

func scanAlert(row scanner) (domain.Alert, error) {
	var a domain.Alert
	if err := row.Scan(&a.ID, &a.UserID, &a.RecallID, &a.ProductID, &a.CreatedAt, &a.Viewed, &a.Notified); err != nil {
		return domain.Alert{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

// AlertKeys returns the (user, recall) pairs that already have an alert.
func (q queries) AlertKeys(ctx context.Context, recallIDs []int64) (map[domain.AlertKey]struct{}, error) {
	keys := make(map[domain.AlertKey]struct{})
	for _, chunk := range chunks(recallIDs, maxInParams) {
		query, args, err := q.sb.Select("user_id", "recall_id").
			From("alerts").
			Where(sq.Eq{"recall_id": chunk}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build alert keys: %w", err)
		}

		rows, err := q.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, classify("query alert keys", err)
		}
		for rows.Next() {
			var key domain.AlertKey
			if err := rows.Scan(&key.UserID, &key.RecallID); err != nil {
				_ = rows.Close()
				return nil, classify("scan alert key", err)
			}
			keys[key] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, classify("rows iteration", err)
		}
		if err := rows.Close(); err != nil {
			return nil, classify("close rows", err)
		}
	}
	return keys, nil
}

// InsertAlert creates the alert unless one exists for the same user and
// recall. It reports whether a row was written.
func (q queries) InsertAlert(ctx context.Context, alert domain.Alert) (bool, error) {
	created := alert.CreatedAt
	if created.IsZero() {
		created = q.now()
	}

	query, args, err := q.sb.Insert("alerts").
		Columns("user_id", "recall_id", "upc", "created_at", "viewed", "notified").
		Values(alert.UserID, alert.RecallID, alert.ProductID, stamp(created), false, false).
		Suffix("ON CONFLICT (user_id, recall_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert alert: %w", err)
	}

	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, classify("insert alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("insert alert rows", err)
	}
	return n == 1, nil
}

// AlertsForUser lists a user's alerts, newest first, with their recalls.
func (q queries) AlertsForUser(ctx context.Context, userID string) ([]domain.AlertView, error) {
	query, args, err := q.sb.Select(append(qualified("a", alertColumns), qualified("r", recallColumns)...)...).
		From("alerts a").
		Join("recalls r ON r.id = a.recall_id").
		Where(sq.Eq{"a.user_id": userID}).
		OrderBy("a.created_at DESC", "a.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build alerts for user: %w", err)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query alerts", err)
	}
	defer rows.Close()

	views := []domain.AlertView{}
	for rows.Next() {
		var a domain.Alert
		rec, err := scanRecall(rows,
			&a.ID, &a.UserID, &a.RecallID, &a.ProductID, &a.CreatedAt, &a.Viewed, &a.Notified)
		if err != nil {
			return nil, classify("scan alert", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		views = append(views, domain.AlertView{Alert: a, Recall: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows iteration", err)
	}
	return views, nil
}

// PendingAlerts returns alerts nobody has notified the user about yet, oldest first.
func (q queries) PendingAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	query, args, err := q.sb.Select(alertColumns...).
		From("alerts").
		Where(sq.Eq{"notified": false}).
		OrderBy("id").
		Limit(uint64(clampLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending alerts: %w", err)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query pending alerts", err)
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, classify("scan alert", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows iteration", err)
	}
	return alerts, nil
}

// MarkViewed flags an alert as seen by its user.
func (q queries) MarkViewed(ctx context.Context, alertID int64) error {
	return q.setAlertFlag(ctx, alertID, "viewed")
}

// MarkNotified flags an alert as delivered by the notification dispatcher.
func (q queries) MarkNotified(ctx context.Context, alertID int64) error {
	return q.setAlertFlag(ctx, alertID, "notified")
}

func (q queries) setAlertFlag(ctx context.Context, alertID int64, column string) error {
	query, args, err := q.sb.Update("alerts").
		Set(column, true).
		Where(sq.Eq{"id": alertID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark %s: %w", column, err)
	}

	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return classify("mark "+column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("mark "+column+" rows", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %d: %w", alertID, domain.ErrNotFound)
	}
	return nil
}
