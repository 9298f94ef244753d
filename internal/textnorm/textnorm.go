// Package textnorm reduces free text to a canonical comparable form shared by
// classification, search and suggestions.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize decomposes text, drops combining marks, lowercases it and keeps
// only ASCII letters, digits and single spaces. It is total and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// transform.Chain is stateful, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := true // suppresses leading spaces
	for _, r := range stripped {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Terms splits the normalized form of text into whitespace-separated terms.
func Terms(text string) []string {
	return strings.Fields(Normalize(text))
}

// Contains reports whether the normalized needle occurs in the normalized
// haystack. An empty needle matches everything.
func Contains(haystack, needle string) bool {
	return strings.Contains(Normalize(haystack), Normalize(needle))
}
