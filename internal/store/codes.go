package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// MaxMnemonicSequence returns the highest numeric suffix ever issued for a
// mnemonic prefix. Live, soft-deleted and retired codes all count, as does
// the recorded high-water mark.
func MaxMnemonicSequence(ctx context.Context, db DBTX, prefix string) (int, error) {
	start := len(prefix) + 2
	pattern := prefix + "-[0-9]*"

	var highest sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM (
		     SELECT CAST(SUBSTR(mnemonic_code, ?) AS INTEGER) AS seq FROM items WHERE mnemonic_code GLOB ?
		     UNION ALL
		     SELECT CAST(SUBSTR(code, ?) AS INTEGER) FROM retired_codes WHERE code GLOB ?
		     UNION ALL
		     SELECT last_value FROM code_sequences WHERE prefix = ?
		 )`,
		start, pattern, start, pattern, prefix,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("reading max sequence for %s: %w", prefix, dbErr(err))
	}
	return int(highest.Int64), nil
}

// BumpSequence raises the high-water mark for a prefix to at least value.
func BumpSequence(ctx context.Context, db DBTX, prefix string, value int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO code_sequences (prefix, last_value) VALUES (?, ?)
		 ON CONFLICT (prefix) DO UPDATE SET last_value = MAX(last_value, excluded.last_value)`,
		prefix, value,
	)
	if err != nil {
		return fmt.Errorf("bumping sequence for %s: %w", prefix, dbErr(err))
	}
	return nil
}

// CountCreatedBetween counts items, deleted ones included, created in [from, to).
func CountCreatedBetween(ctx context.Context, db DBTX, from, to time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE created_at >= ? AND created_at < ?`,
		formatTime(from), formatTime(to),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", dbErr(err))
	}
	return count, nil
}

// CodeExists reports whether code is a mnemonic or numeric code of any item,
// deleted ones included, or has been retired.
func CodeExists(ctx context.Context, db DBTX, code string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE mnemonic_code = ? OR numeric_code = ?)
		     OR EXISTS (SELECT 1 FROM retired_codes WHERE code = ?)`,
		code, code, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking code: %w", dbErr(err))
	}
	return exists, nil
}

// RetireCodes reserves codes formerly held by an item so they are never
// issued again. Empty codes are skipped.
func RetireCodes(ctx context.Context, db DBTX, itemID int64, codes ...string) error {
	for _, code := range codes {
		if code == "" {
			continue
		}
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO retired_codes (code, item_id) VALUES (?, ?)`,
			code, itemID,
		)
		if err != nil {
			return fmt.Errorf("retiring code %s: %w", code, dbErr(err))
		}
	}
	return nil
}

// ListRetiredCodes returns the codes an item held before being re-issued.
func ListRetiredCodes(ctx context.Context, db DBTX, itemID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT code FROM retired_codes WHERE item_id = ? ORDER BY retired_at, code`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing retired codes: %w", dbErr(err))
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning retired code: %w", dbErr(err))
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating retired codes: %w", dbErr(err))
	}
	return codes, nil
}

// FindItemByCode returns the live item holding code as its mnemonic
// (case-insensitive) or numeric code, or nil.
func FindItemByCode(ctx context.Context, db DBTX, code string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE deleted_at IS NULL AND (UPPER(mnemonic_code) = UPPER(?) OR numeric_code = ?)
		 LIMIT 1`,
		code, code,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding item by code: %w", dbErr(err))
	}
	return &item, nil
}

// FindItemsByCodeFragment returns up to limit live items whose mnemonic or
// numeric code contains fragment, ordered by mnemonic code.
func FindItemsByCodeFragment(ctx context.Context, db DBTX, fragment string, limit int) ([]model.Item, error) {
	p := likeContains(fragment)
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE deleted_at IS NULL
		   AND (mnemonic_code LIKE ? ESCAPE '\' OR numeric_code LIKE ? ESCAPE '\')
		 ORDER BY mnemonic_code, numeric_code
		 LIMIT ?`,
		p, p, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("finding items by code fragment: %w", dbErr(err))
	}
	return scanItems(rows)
}

var distinctColumns = map[string]string{
	"name":         "name",
	"category_key": "category_key",
	"brand":        "brand",
}

// DistinctValues returns the sorted distinct non-empty values of a column
// over live items. Only name, category_key and brand are allowed.
func DistinctValues(ctx context.Context, db DBTX, field string) ([]string, error) {
	col, ok := distinctColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", model.ErrValidation, field)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT `+col+` FROM items
		 WHERE deleted_at IS NULL AND `+col+` IS NOT NULL AND `+col+` <> ''
		 ORDER BY `+col,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s values: %w", field, dbErr(err))
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s value: %w", field, dbErr(err))
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s values: %w", field, dbErr(err))
	}
	return values, nil
}

// ListItemsWithoutCodes returns live items that have no mnemonic code, oldest first.
func ListItemsWithoutCodes(ctx context.Context, db DBTX) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE deleted_at IS NULL AND mnemonic_code IS NULL
		 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items without codes: %w", dbErr(err))
	}
	return scanItems(rows)
}
