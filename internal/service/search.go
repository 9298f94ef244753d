package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/search"
	"github.com/erazemk/evidenca/internal/store"
)

// Search ranks live items against query. See search.Searcher.Search.
func (s *Service) Search(ctx context.Context, query string, f search.Filters, limit int) ([]search.Result, error) {
	defer s.observe("search", time.Now())
	results, err := s.searcher().Search(ctx, query, f, limit)
	if results == nil && err == nil {
		results = []search.Result{}
	}
	return results, err
}

// SimilarNames returns items with names similar to name.
func (s *Service) SimilarNames(ctx context.Context, name string, threshold float64) ([]search.Result, error) {
	defer s.observe("similar", time.Now())
	if threshold <= 0 {
		threshold = search.DefaultSimilarityThreshold
	}
	results, err := s.searcher().SimilarNames(ctx, name, threshold)
	if results == nil && err == nil {
		results = []search.Result{}
	}
	return results, err
}

// ByCode resolves a mnemonic or numeric code.
func (s *Service) ByCode(ctx context.Context, code string) (search.CodeMatch, error) {
	defer s.observe("code", time.Now())
	return s.searcher().ByCode(ctx, code)
}

// Suggest completes partial input from stored names, categories and brands.
func (s *Service) Suggest(ctx context.Context, partial string, limit int) ([]string, error) {
	defer s.observe("suggest", time.Now())
	out, err := s.searcher().Suggest(ctx, partial, limit)
	if out == nil && err == nil {
		out = []string{}
	}
	return out, err
}

// Lookup combines search, suggestions and similar names for one query.
func (s *Service) Lookup(ctx context.Context, query string) (search.LookupResult, error) {
	defer s.observe("lookup", time.Now())
	return s.searcher().Lookup(ctx, query)
}

// CategoryBranch groups live items under one category key.
type CategoryBranch struct {
	Category string       `json:"category"`
	Count    int          `json:"count"`
	Items    []model.Item `json:"items"`
}

// CategoryTree groups live items whose raw label or key contains fragment by
// category key. Branches are ordered by key and items by name. An empty
// fragment groups every live item.
func (s *Service) CategoryTree(ctx context.Context, fragment string) ([]CategoryBranch, error) {
	defer s.observe("category_tree", time.Now())
	items, err := store.ListItems(ctx, s.DB, search.Filters{Category: strings.TrimSpace(fragment)})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*CategoryBranch)
	for _, it := range items {
		b, ok := byKey[it.CategoryKey]
		if !ok {
			b = &CategoryBranch{Category: it.CategoryKey}
			byKey[it.CategoryKey] = b
		}
		b.Items = append(b.Items, it)
		b.Count++
	}

	out := make([]CategoryBranch, 0, len(byKey))
	for _, b := range byKey {
		slices.SortStableFunc(b.Items, func(x, y model.Item) int {
			return cmp.Or(cmp.Compare(x.Name, y.Name), cmp.Compare(x.ID, y.ID))
		})
		out = append(out, *b)
	}
	slices.SortFunc(out, func(x, y CategoryBranch) int { return cmp.Compare(x.Category, y.Category) })
	return out, nil
}

func (s *Service) observe(op string, start time.Time) {
	s.Metrics.ObserveSearch(op, time.Since(start))
}
