// Package store holds the SQL queries for items, codes, movements and users.
// Functions take a DBTX so the same query runs standalone or inside a
// transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/evidenca/internal/model"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout matches SQLite's CURRENT_TIMESTAMP so stored values compare as text.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// dbErr classifies a driver error. Unique violations become
// model.ErrCodeConflict, everything else model.ErrStorageUnavailable.
func dbErr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", model.ErrCodeConflict, err)
	}
	return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// likeContains builds a LIKE pattern matching s anywhere. Use with ESCAPE '\'.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
