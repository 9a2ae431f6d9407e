package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Load reads the catalog from the catalog_items table. The result is
// immutable; stock changes are never written back.
func Load(ctx context.Context, db *pgxpool.Pool) (*Catalog, error) {
	rows, err := db.Query(ctx, `SELECT id, name, stock FROM catalog_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.TotalStock); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return New(items)
}
