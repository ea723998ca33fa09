package storage

import (
	"context"
	"fmt"

	"RecallWatch/internal/domain"
)

// SavedItems reads the whole user to product relation. The list feature owns
// the table; the pipeline only reads it.
func (q queries) SavedItems(ctx context.Context) ([]domain.SavedItem, error) {
	query, args, err := q.sb.Select("user_id", "upc", "product_name").
		From("saved_items").
		OrderBy("user_id", "upc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build saved items: %w", err)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query saved items", err)
	}
	defer rows.Close()

	var items []domain.SavedItem
	for rows.Next() {
		var item domain.SavedItem
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.ProductName); err != nil {
			return nil, classify("scan saved item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows iteration", err)
	}
	return items, nil
}

// SaveItem records that a user tracks a product. Used to seed local databases.
func (r *Repository) SaveItem(ctx context.Context, item domain.SavedItem) error {
	query, args, err := r.sb.Insert("saved_items").
		Columns("user_id", "upc", "product_name").
		Values(item.UserID, item.ProductID, item.ProductName).
		Suffix("ON CONFLICT (user_id, upc) DO UPDATE SET product_name = EXCLUDED.product_name").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save item: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return classify("save item", err)
	}
	return nil
}
