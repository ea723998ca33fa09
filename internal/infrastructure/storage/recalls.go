package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/normalize"
)

var recallColumns = []string{
	"id", "upc", "product_name", "brand_name", "recall_date", "reason",
	"hazard_tier", "firm_name", "distribution", "source", "created_at", "updated_at",
}

func qualified(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

func scanRecall(row scanner, extra ...any) (domain.RecallRecord, error) {
	var (
		rec    domain.RecallRecord
		tier   string
		source string
	)
	dest := []any{
		&rec.ID, &rec.ProductID, &rec.ProductName, &rec.BrandName, &rec.RecallDate, &rec.Reason,
		&tier, &rec.FirmName, &rec.Distribution, &source, &rec.CreatedAt, &rec.UpdatedAt,
	}
	if err := row.Scan(append(extra, dest...)...); err != nil {
		return domain.RecallRecord{}, err
	}

	rec.HazardTier = domain.ParseHazardTier(tier)
	rec.Source = domain.Authority(source)
	rec.RecallDate = domain.Day(rec.RecallDate)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// upsertOnConflict refreshes the mutable fields of an existing (upc,
// recall_date) row. id and created_at are left alone; revision counts writes,
// so it is 1 exactly when the statement inserted.
const upsertOnConflict = `ON CONFLICT (upc, recall_date) DO UPDATE SET
	product_name = excluded.product_name,
	brand_name = excluded.brand_name,
	reason = excluded.reason,
	hazard_tier = excluded.hazard_tier,
	firm_name = excluded.firm_name,
	distribution = excluded.distribution,
	source = excluded.source,
	updated_at = excluded.updated_at,
	revision = recalls.revision + 1
RETURNING id, revision`

// upsertRecall inserts rec or updates the row sharing its natural key in one
// statement. The id of an existing row never changes.
func (q queries) upsertRecall(ctx context.Context, rec domain.RecallRecord) (domain.UpsertResult, error) {
	now := stamp(q.now())

	query, args, err := q.sb.Insert("recalls").
		Columns("upc", "product_name", "brand_name", "recall_date", "reason", "hazard_tier",
			"firm_name", "distribution", "source", "created_at", "updated_at", "revision").
		Values(rec.ProductID, rec.ProductName, rec.BrandName, domain.Day(rec.RecallDate), rec.Reason,
			rec.HazardTier.String(), rec.FirmName, rec.Distribution, string(rec.Source), now, now, 1).
		Suffix(upsertOnConflict).
		ToSql()
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("build upsert recall: %w", err)
	}

	var (
		id       int64
		revision int64
	)
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&id, &revision); err != nil {
		return domain.UpsertResult{}, classify("upsert recall", err)
	}
	return domain.UpsertResult{ID: id, Inserted: revision == 1}, nil
}

// RecallsByProduct returns every stored recall for the given product ids.
func (q queries) RecallsByProduct(ctx context.Context, productIDs []string) ([]domain.RecallRecord, error) {
	var out []domain.RecallRecord
	for _, chunk := range chunks(productIDs, maxInParams) {
		query, args, err := q.sb.Select(recallColumns...).
			From("recalls").
			Where(sq.Eq{"upc": chunk}).
			OrderBy("id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build recalls by product: %w", err)
		}

		recs, err := q.selectRecalls(ctx, query, args)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// ListRecalls returns the most recent recalls first.
func (q queries) ListRecalls(ctx context.Context, limit int) ([]domain.RecallRecord, error) {
	query, args, err := q.sb.Select(recallColumns...).
		From("recalls").
		OrderBy("recall_date DESC", "id DESC").
		Limit(uint64(clampLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list recalls: %w", err)
	}
	return q.selectRecalls(ctx, query, args)
}

// LatestRecall returns the newest recall for productID or domain.ErrNotFound.
func (q queries) LatestRecall(ctx context.Context, productID string) (domain.RecallRecord, error) {
	query, args, err := q.sb.Select(recallColumns...).
		From("recalls").
		Where(sq.Eq{"upc": normalize.CanonicalProductID(productID)}).
		OrderBy("recall_date DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.RecallRecord{}, fmt.Errorf("build latest recall: %w", err)
	}

	rec, err := scanRecall(q.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RecallRecord{}, fmt.Errorf("recall for %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RecallRecord{}, classify("latest recall", err)
	}
	return rec, nil
}

func (q queries) selectRecalls(ctx context.Context, query string, args []any) ([]domain.RecallRecord, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query recalls", err)
	}
	defer rows.Close()

	var out []domain.RecallRecord
	for rows.Next() {
		rec, err := scanRecall(rows)
		if err != nil {
			return nil, classify("scan recall", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows iteration", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
