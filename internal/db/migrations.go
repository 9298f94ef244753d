package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: creation-time lookups back the daily numeric counter.
	`CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at)`,
	// Migration 2: category counts and filters.
	`CREATE INDEX IF NOT EXISTS idx_items_category_key ON items(category_key)`,
	// Migration 3: per-item audit history.
	`CREATE INDEX IF NOT EXISTS idx_movements_item ON movements(item_id, created_at)`,
	// Migration 4: retired codes are looked up by the item that held them.
	`CREATE INDEX IF NOT EXISTS idx_retired_codes_item ON retired_codes(item_id)`,
}

// Migrate applies migrations to a database whose base schema already exists.
func Migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
