package search

import (
	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityFunc returns a ratio in [0, 1] between two normalized strings:
// 1 for identical input, 0 for strings sharing no characters.
type SimilarityFunc func(a, b string) float64

// Similarity is the Ratcliff/Obershelp ratio computed over runes.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
