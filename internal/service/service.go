// Package service ties the identity and retrieval engine to the store. It
// owns the write paths: registration, updates, code re-issue and photos.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/evidenca/internal/category"
	"github.com/erazemk/evidenca/internal/codes"
	"github.com/erazemk/evidenca/internal/imaging"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/search"
	"github.com/erazemk/evidenca/internal/store"
)

// MaxWriteAttempts bounds inserts that lose a uniqueness race. The last
// attempt uses a fallback code.
const MaxWriteAttempts = 3

// Service runs item operations against a database.
type Service struct {
	DB      *sql.DB
	Table   *category.Table
	Metrics *metrics.Metrics
	Photos  imaging.Options

	// Now and Intn override the allocator clock and randomness.
	Now  func() time.Time
	Intn func(n int) int
}

// New returns a Service with default photo options.
func New(db *sql.DB, table *category.Table, m *metrics.Metrics) *Service {
	return &Service{DB: db, Table: table, Metrics: m}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// allocator returns an allocator reading through db, which must be the
// transaction the codes will be written in.
func (s *Service) allocator(db store.DBTX) *codes.Allocator {
	a := codes.NewAllocator(store.Catalog{DB: db}, s.Table)
	if s.Now != nil {
		a.Now = s.Now
	}
	if s.Intn != nil {
		a.Intn = s.Intn
	}
	return a
}

func (s *Service) searcher() *search.Searcher {
	return search.New(store.Catalog{DB: s.DB})
}

// inTx runs fn in a transaction, committing if it returns nil.
func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", model.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// writeCodes allocates codes for name and categoryLabel and hands them to
// write inside one transaction. A write rejected with model.ErrCodeConflict
// is retried with freshly allocated codes; the final attempt uses a fallback
// code.
func (s *Service) writeCodes(ctx context.Context, name, categoryLabel string, write func(tx *sql.Tx, c codes.Codes) error) (codes.Codes, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxWriteAttempts; attempt++ {
		var allocated codes.Codes
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			a := s.allocator(tx)
			var err error
			if attempt == MaxWriteAttempts {
				allocated, err = a.AllocateFallback(ctx, name, categoryLabel)
			} else {
				allocated, err = a.AllocateAll(ctx, name, categoryLabel)
			}
			if err != nil {
				return err
			}
			if err := write(tx, allocated); err != nil {
				return err
			}
			if !allocated.Fallback {
				return store.BumpSequence(ctx, tx, allocated.Category.Prefix, allocated.Sequence)
			}
			return nil
		})
		if err == nil {
			s.Metrics.ObserveAllocation(allocated.Attempts, allocated.Fallback)
			if allocated.Fallback {
				slog.Warn("allocated fallback code", "code", allocated.Mnemonic, "category", allocated.Category.Key, "attempt", attempt)
			}
			return allocated, nil
		}
		if !errors.Is(err, model.ErrCodeConflict) {
			return codes.Codes{}, err
		}
		s.Metrics.IncWriteConflict()
		lastErr = err
	}
	return codes.Codes{}, fmt.Errorf("giving up after %d attempts: %w", MaxWriteAttempts, lastErr)
}

// GetItem returns a live item or model.ErrNotFound.
func (s *Service) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	return item, nil
}

// History returns the audit trail of an item, deleted items included.
func (s *Service) History(ctx context.Context, id int64) ([]model.Movement, error) {
	item, err := store.GetItem(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	movements, err := store.ListMovements(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	return movements, nil
}

// RetiredCodes returns the codes an item held before re-issue.
func (s *Service) RetiredCodes(ctx context.Context, id int64) ([]string, error) {
	if _, err := s.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return store.ListRetiredCodes(ctx, s.DB, id)
}

// Stats summarizes the live items.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	return store.GetStats(ctx, s.DB)
}

// CategoryCount is a category table entry with its live item count.
type CategoryCount struct {
	category.Category
	Items int `json:"items"`
}

// Categories lists the category table in order with live item counts.
func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	counts, err := store.CountByCategory(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	entries := s.Table.Entries()
	out := make([]CategoryCount, 0, len(entries))
	for _, c := range entries {
		out = append(out, CategoryCount{Category: c, Items: counts[c.Key]})
	}
	return out, nil
}

// Classify resolves a free-text category label.
func (s *Service) Classify(label string) category.Category {
	return s.Table.Classify(label)
}
