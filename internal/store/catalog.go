package store

import (
	"context"
	"time"

	"github.com/erazemk/evidenca/internal/codes"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/search"
)

var (
	_ codes.Index   = Catalog{}
	_ search.Source = Catalog{}
)

// Catalog exposes the item queries through the interfaces the code
// allocator and the searcher consume.
type Catalog struct {
	DB DBTX
}

func (c Catalog) MaxMnemonicSequence(ctx context.Context, prefix string) (int, error) {
	return MaxMnemonicSequence(ctx, c.DB, prefix)
}

func (c Catalog) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return CountCreatedBetween(ctx, c.DB, from, to)
}

func (c Catalog) CodeExists(ctx context.Context, code string) (bool, error) {
	return CodeExists(ctx, c.DB, code)
}

func (c Catalog) ListItems(ctx context.Context, f search.Filters) ([]model.Item, error) {
	return ListItems(ctx, c.DB, f)
}

func (c Catalog) FindByCode(ctx context.Context, code string) (*model.Item, error) {
	return FindItemByCode(ctx, c.DB, code)
}

func (c Catalog) FindByCodeFragment(ctx context.Context, fragment string, limit int) ([]model.Item, error) {
	return FindItemsByCodeFragment(ctx, c.DB, fragment, limit)
}

func (c Catalog) DistinctValues(ctx context.Context, field string) ([]string, error) {
	return DistinctValues(ctx, c.DB, field)
}
