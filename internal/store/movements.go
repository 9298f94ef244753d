package store

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// CreateMovement records an audit entry for an item.
func CreateMovement(ctx context.Context, db DBTX, itemID int64, userID *int64, action, details string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO movements (item_id, user_id, action, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		itemID, userID, action, nullIfEmpty(details), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording movement: %w", dbErr(err))
	}
	return nil
}

// ListMovements returns the audit history of an item, newest first.
func ListMovements(ctx context.Context, db DBTX, itemID int64) ([]model.Movement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT m.id, m.item_id, m.user_id, m.action, COALESCE(m.details, ''), m.created_at,
		        COALESCE(u.username, '')
		 FROM movements m
		 LEFT JOIN users u ON u.id = m.user_id
		 WHERE m.item_id = ?
		 ORDER BY m.created_at DESC, m.id DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", dbErr(err))
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.UserID, &m.Action, &m.Details, &m.CreatedAt, &m.Username); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", dbErr(err))
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating movements: %w", dbErr(err))
	}
	return movements, nil
}
