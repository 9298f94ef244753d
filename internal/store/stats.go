package store

import (
	"context"
	"fmt"

	"github.com/erazemk/evidenca/internal/model"
)

// GetStats returns totals and per-category, per-status and per-location
// counts over live items. Items without a location count under "". Recent
// holds the newest live items.
func GetStats(ctx context.Context, db DBTX) (*model.Stats, error) {
	stats := &model.Stats{}
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(quantity), 0),
		        COALESCE(SUM(CASE WHEN mnemonic_code IS NOT NULL THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN quantity < ? THEN 1 ELSE 0 END), 0)
		 FROM items WHERE deleted_at IS NULL`, model.LowStockThreshold,
	).Scan(&stats.TotalItems, &stats.TotalQuantity, &stats.WithCodes, &stats.LowStock)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", dbErr(err))
	}

	if stats.ByCategory, err = countBy(ctx, db, "category_key"); err != nil {
		return nil, err
	}
	if stats.ByStatus, err = countBy(ctx, db, "status"); err != nil {
		return nil, err
	}
	if stats.ByLocation, err = countBy(ctx, db, "COALESCE(location, '')"); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT ?`, model.RecentLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent items: %w", dbErr(err))
	}
	if stats.Recent, err = scanItems(rows); err != nil {
		return nil, err
	}
	return stats, nil
}

// CountByCategory returns live item counts per category key.
func CountByCategory(ctx context.Context, db DBTX) (map[string]int, error) {
	return countBy(ctx, db, "category_key")
}

// countBy groups live items by a trusted column expression.
func countBy(ctx context.Context, db DBTX, expr string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+expr+`, COUNT(*) FROM items WHERE deleted_at IS NULL GROUP BY 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("grouping items by %s: %w", expr, dbErr(err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", dbErr(err))
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", dbErr(err))
	}
	return counts, nil
}
