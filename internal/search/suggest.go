package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/erazemk/evidenca/internal/textnorm"
)

// Suggestion fields and how many values each contributes.
const (
	FieldName     = "name"
	FieldCategory = "category_key"
	FieldBrand    = "brand"

	DefaultMaxSuggestions = 10
	minSuggestInput       = 2
)

var suggestionFields = []struct {
	field string
	limit int
}{
	{FieldName, 5},
	{FieldCategory, 3},
	{FieldBrand, 3},
}

// Suggest returns stored names, category keys and brands containing partial,
// deduplicated and sorted, at most limit values. Input shorter than two
// characters yields nothing.
func (s *Searcher) Suggest(ctx context.Context, partial string, limit int) ([]string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(partial)) < minSuggestInput {
		return nil, nil
	}
	q := textnorm.Normalize(partial)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}

	seen := make(map[string]bool)
	var out []string
	for _, sf := range suggestionFields {
		values, err := s.Source.DistinctValues(ctx, sf.field)
		if err != nil {
			return nil, fmt.Errorf("loading %s suggestions: %w", sf.field, err)
		}
		taken := 0
		for _, v := range values {
			if taken == sf.limit {
				break
			}
			if !textnorm.Contains(v, q) {
				continue
			}
			taken++
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}

	slices.Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Lookup limits.
const (
	lookupLimit            = 10
	lookupMinResults       = 3
	lookupSimilarMinLength = 2
	lookupSimilarThreshold = 0.4
)

// LookupResult combines ranked results, suggestions and fuzzy name matches
// for an interactive query.
type LookupResult struct {
	Query       string   `json:"query"`
	Results     []Result `json:"results"`
	Suggestions []string `json:"suggestions"`
	Similar     []Result `json:"similar,omitempty"`
}

// Lookup runs a search and attaches suggestions. When the search finds
// fewer than three items for a query longer than two characters, fuzzy
// name matches not already in the results are added.
func (s *Searcher) Lookup(ctx context.Context, query string) (LookupResult, error) {
	res := LookupResult{Query: query}

	results, err := s.Search(ctx, query, Filters{}, lookupLimit)
	if err != nil {
		return res, err
	}
	res.Results = results

	suggestions, err := s.Suggest(ctx, query, DefaultMaxSuggestions)
	if err != nil {
		return res, err
	}
	res.Suggestions = suggestions

	if len(results) < lookupMinResults && utf8.RuneCountInString(strings.TrimSpace(query)) > lookupSimilarMinLength {
		similar, err := s.SimilarNames(ctx, query, lookupSimilarThreshold)
		if err != nil {
			return res, err
		}
		found := make(map[int64]bool, len(results))
		for _, r := range results {
			found[r.Item.ID] = true
		}
		for _, r := range similar {
			if !found[r.Item.ID] {
				res.Similar = append(res.Similar, r)
			}
		}
	}

	if res.Results == nil {
		res.Results = []Result{}
	}
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	return res, nil
}
