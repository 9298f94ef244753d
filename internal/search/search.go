// Package search ranks items against free-text queries, resolves codes and
// produces type-ahead suggestions. It reads live data through Source and
// keeps no index of its own.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/textnorm"
)

// Scoring constants.
const (
	// NeutralScore is assigned to every result of an empty query.
	NeutralScore = 0.5
	// DefaultSimilarityThreshold is the cut-off used by SimilarNames callers
	// that do not choose their own.
	DefaultSimilarityThreshold = 0.6
	// MaxCodeMatches caps partial code matches.
	MaxCodeMatches = 10

	termFactor       = 0.5
	similarityFactor = 0.3
	similarityFloor  = 0.3
)

// Field weights for scoring.
var weights = []struct {
	name   string
	weight float64
	value  func(model.Item) string
}{
	{"mnemonic_code", 1.0, func(i model.Item) string { return i.MnemonicCode }},
	{"numeric_code", 1.0, func(i model.Item) string { return i.NumericCode }},
	{"name", 0.8, func(i model.Item) string { return i.Name }},
	{"brand", 0.6, func(i model.Item) string { return i.Brand }},
	{"model", 0.6, func(i model.Item) string { return i.Model }},
	{"category", 0.4, categoryText},
	{"description", 0.3, func(i model.Item) string { return i.Description }},
}

// categoryText is the raw category label followed by its canonical key when
// the two differ.
func categoryText(i model.Item) string {
	if i.CategoryRaw == "" || textnorm.Normalize(i.CategoryRaw) == textnorm.Normalize(i.CategoryKey) {
		return i.CategoryKey
	}
	return i.CategoryRaw + " " + i.CategoryKey
}

// Filters restrict a search by case-insensitive substring on structured fields.
// Category matches either the raw label or the canonical key.
type Filters struct {
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Source is the store view used by searches.
type Source interface {
	// ListItems returns live items matching filters, items with a mnemonic
	// code first and then by name.
	ListItems(ctx context.Context, f Filters) ([]model.Item, error)
	// FindByCode returns the live item whose mnemonic or numeric code equals
	// code, ignoring case, or nil.
	FindByCode(ctx context.Context, code string) (*model.Item, error)
	// FindByCodeFragment returns up to limit live items whose mnemonic or
	// numeric code contains fragment, ordered by mnemonic code.
	FindByCodeFragment(ctx context.Context, fragment string, limit int) ([]model.Item, error)
	// DistinctValues returns the sorted distinct non-empty values of a
	// suggestion field over live items.
	DistinctValues(ctx context.Context, field string) ([]string, error)
}

// Result is a ranked search hit.
type Result struct {
	Item  model.Item `json:"item"`
	Score float64    `json:"score"`
}

// Searcher runs relevance searches over a Source.
type Searcher struct {
	Source     Source
	Similarity SimilarityFunc
}

// New returns a Searcher using the default similarity function.
func New(src Source) *Searcher {
	return &Searcher{Source: src, Similarity: Similarity}
}

// Search returns items matching every term of query, ranked by relevance.
// An empty query returns all filtered items by name with NeutralScore.
// A limit <= 0 means no limit.
func (s *Searcher) Search(ctx context.Context, query string, f Filters, limit int) ([]Result, error) {
	items, err := s.Source.ListItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}

	q := textnorm.Normalize(query)
	if q == "" {
		slices.SortStableFunc(items, func(a, b model.Item) int { return cmp.Compare(a.Name, b.Name) })
		results := make([]Result, 0, len(items))
		for _, item := range items {
			results = append(results, Result{Item: item, Score: NeutralScore})
		}
		return truncate(results, limit), nil
	}

	terms := textnorm.Terms(q)
	var results []Result
	for _, item := range items {
		if !matchesAll(item, terms) {
			continue
		}
		results = append(results, Result{Item: item, Score: s.score(item, q, terms)})
	}

	slices.SortStableFunc(results, func(a, b Result) int { return cmp.Compare(b.Score, a.Score) })
	return truncate(results, limit), nil
}

// Score returns the relevance of item for query.
func (s *Searcher) Score(item model.Item, query string) float64 {
	q := textnorm.Normalize(query)
	if q == "" {
		return NeutralScore
	}
	return s.score(item, q, textnorm.Terms(q))
}

func (s *Searcher) score(item model.Item, q string, terms []string) float64 {
	sim := s.Similarity
	if sim == nil {
		sim = Similarity
	}

	total := 0.0
	for _, w := range weights {
		field := textnorm.Normalize(w.value(item))
		if field == "" {
			continue
		}
		if strings.Contains(field, q) {
			total += w.weight
		}
		for _, term := range terms {
			if strings.Contains(field, term) {
				total += w.weight * termFactor
			}
		}
		if ratio := sim(q, field); ratio > similarityFloor {
			total += w.weight * similarityFactor * ratio
		}
	}
	return min(total, 1.0)
}

// matchesAll reports whether every term occurs in at least one searchable field.
func matchesAll(item model.Item, terms []string) bool {
	fields := []string{
		textnorm.Normalize(item.Name),
		textnorm.Normalize(item.Description),
		textnorm.Normalize(item.MnemonicCode),
		textnorm.Normalize(item.NumericCode),
		textnorm.Normalize(item.Brand),
		textnorm.Normalize(item.Model),
		textnorm.Normalize(item.SerialNumber),
	}
	for _, term := range terms {
		found := false
		for _, f := range fields {
			if strings.Contains(f, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SimilarNames returns items whose normalized name is at least threshold
// similar to name, most similar first. It scans every live item.
func (s *Searcher) SimilarNames(ctx context.Context, name string, threshold float64) ([]Result, error) {
	q := textnorm.Normalize(name)
	if q == "" {
		return nil, nil
	}

	items, err := s.Source.ListItems(ctx, Filters{})
	if err != nil {
		return nil, fmt.Errorf("searching similar names: %w", err)
	}

	sim := s.Similarity
	if sim == nil {
		sim = Similarity
	}

	var results []Result
	for _, item := range items {
		ratio := sim(q, textnorm.Normalize(item.Name))
		if ratio >= threshold {
			results = append(results, Result{Item: item, Score: ratio})
		}
	}
	slices.SortStableFunc(results, func(a, b Result) int { return cmp.Compare(b.Score, a.Score) })
	return results, nil
}

// CodeMatch is the outcome of a code lookup. At most one of Exact and
// Partial is set; both empty means nothing matched.
type CodeMatch struct {
	Exact   *model.Item  `json:"exact,omitempty"`
	Partial []model.Item `json:"partial,omitempty"`
}

// Empty reports whether the lookup matched nothing.
func (m CodeMatch) Empty() bool {
	return m.Exact == nil && len(m.Partial) == 0
}

// ByCode resolves a mnemonic or numeric code, falling back to partial matches.
func (s *Searcher) ByCode(ctx context.Context, code string) (CodeMatch, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return CodeMatch{}, nil
	}

	item, err := s.Source.FindByCode(ctx, code)
	if err != nil {
		return CodeMatch{}, fmt.Errorf("finding code %s: %w", code, err)
	}
	if item != nil {
		return CodeMatch{Exact: item}, nil
	}

	partial, err := s.Source.FindByCodeFragment(ctx, code, MaxCodeMatches)
	if err != nil {
		return CodeMatch{}, fmt.Errorf("finding code fragment %s: %w", code, err)
	}
	return CodeMatch{Partial: partial}, nil
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
