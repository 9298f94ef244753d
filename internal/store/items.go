package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/search"
)

const itemColumns = `id, name, COALESCE(description, ''), COALESCE(category_raw, ''), category_key,
	quantity, status, COALESCE(location, ''), COALESCE(brand, ''), COALESCE(model, ''),
	COALESCE(serial_number, ''), COALESCE(mnemonic_code, ''), COALESCE(numeric_code, ''),
	COALESCE(scan_payload, ''), COALESCE(image_mime, ''), created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.Item, error) {
	var item model.Item
	err := s.Scan(&item.ID, &item.Name, &item.Description, &item.CategoryRaw, &item.CategoryKey,
		&item.Quantity, &item.Status, &item.Location, &item.Brand, &item.Model,
		&item.SerialNumber, &item.MnemonicCode, &item.NumericCode,
		&item.ScanPayload, &item.ImageMime, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	return item, err
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", dbErr(err))
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", dbErr(err))
	}
	return items, nil
}

// CreateItem inserts an item with its codes. A zero CreatedAt means now.
// Code collisions are reported as model.ErrCodeConflict.
func CreateItem(ctx context.Context, db DBTX, item model.Item) (*model.Item, error) {
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if item.Status == "" {
		item.Status = model.ItemStatusActive
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, description, category_raw, category_key, quantity, status,
		                    location, brand, model, serial_number, mnemonic_code, numeric_code,
		                    scan_payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Description, item.CategoryRaw, item.CategoryKey, item.Quantity, item.Status,
		item.Location, item.Brand, item.Model, item.SerialNumber,
		nullIfEmpty(item.MnemonicCode), nullIfEmpty(item.NumericCode),
		item.ScanPayload, formatTime(created), formatTime(created),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", dbErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", dbErr(err))
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, including soft-deleted items.
func GetItem(ctx context.Context, db DBTX, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", dbErr(err))
	}
	return &item, nil
}

// ListItems returns live items matching the filters. Items that have a
// mnemonic code come first, then items are ordered by name.
func ListItems(ctx context.Context, db DBTX, f search.Filters) ([]model.Item, error) {
	var where []string
	var args []any

	if f.Category != "" {
		p := likeContains(strings.ToLower(f.Category))
		where = append(where, `(LOWER(COALESCE(category_raw, '')) LIKE ? ESCAPE '\' OR LOWER(category_key) LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if f.Location != "" {
		where = append(where, `LOWER(COALESCE(location, '')) LIKE ? ESCAPE '\'`)
		args = append(args, likeContains(strings.ToLower(f.Location)))
	}
	if f.Status != "" {
		where = append(where, `LOWER(status) LIKE ? ESCAPE '\'`)
		args = append(args, likeContains(strings.ToLower(f.Status)))
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE deleted_at IS NULL`
	for _, w := range where {
		query += " AND " + w
	}
	query += ` ORDER BY mnemonic_code IS NULL, name, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", dbErr(err))
	}
	return scanItems(rows)
}

// UpdateItem updates an item's descriptive fields. Codes, category key and
// image are changed through their own functions.
func UpdateItem(ctx context.Context, db DBTX, item model.Item) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category_raw = ?, quantity = ?, status = ?,
		                  location = ?, brand = ?, model = ?, serial_number = ?, scan_payload = ?,
		                  updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		item.Name, item.Description, item.CategoryRaw, item.Quantity, item.Status,
		item.Location, item.Brand, item.Model, item.SerialNumber, item.ScanPayload, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", dbErr(err))
	}
	return nil
}

// SetItemCodes replaces an item's category key, codes and scan payload.
func SetItemCodes(ctx context.Context, db DBTX, id int64, categoryKey, mnemonic, numeric, payload string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET category_key = ?, mnemonic_code = ?, numeric_code = ?, scan_payload = ?,
		                  updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		categoryKey, nullIfEmpty(mnemonic), nullIfEmpty(numeric), payload, id,
	)
	if err != nil {
		return fmt.Errorf("setting item codes: %w", dbErr(err))
	}
	return nil
}

// SetScanPayload stores an item's scan payload.
func SetScanPayload(ctx context.Context, db DBTX, id int64, payload string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET scan_payload = ? WHERE id = ?`, payload, id,
	)
	if err != nil {
		return fmt.Errorf("setting scan payload: %w", dbErr(err))
	}
	return nil
}

// DeleteItem soft-deletes an item. Its codes stay reserved.
func DeleteItem(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", dbErr(err))
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db DBTX, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", dbErr(err))
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db DBTX, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", dbErr(err))
	}
	return image, mime.String, nil
}
