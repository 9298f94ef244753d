// Package category maps free-text category labels onto a closed vocabulary of
// canonical keys, each carrying a fixed-width mnemonic and numeric prefix.
package category

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/evidenca/internal/textnorm"
)

//go:embed categories.yaml
var defaultYAML []byte

var (
	prefixPattern  = regexp.MustCompile(`^[A-Z]{4}$`)
	numericPattern = regexp.MustCompile(`^[0-9]{2}$`)
)

// Category is one entry of the canonical vocabulary.
type Category struct {
	Key           string   `yaml:"key" json:"key"`
	Label         string   `yaml:"label" json:"label"`
	Prefix        string   `yaml:"prefix" json:"prefix"`
	NumericPrefix string   `yaml:"numeric" json:"numeric_prefix"`
	Aliases       []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

type document struct {
	Fallback   string     `yaml:"fallback"`
	Categories []Category `yaml:"categories"`
}

// Table is an immutable, validated category vocabulary. It is safe for
// concurrent use.
type Table struct {
	entries  []Category
	terms    [][]string // normalized key and aliases, per entry
	byKey    map[string]int
	fallback int
}

// Load parses and validates a YAML category document.
func Load(r io.Reader) (*Table, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding category table: %w", err)
	}
	return newTable(doc)
}

// LoadFile loads a category table from a YAML file on disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening category table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

var defaultTable = sync.OnceValue(func() *Table {
	t, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded category table: %v", err))
	}
	return t
})

// Default returns the built-in category table.
func Default() *Table {
	return defaultTable()
}

func newTable(doc document) (*Table, error) {
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("category table is empty")
	}

	t := &Table{
		entries:  make([]Category, 0, len(doc.Categories)),
		terms:    make([][]string, 0, len(doc.Categories)),
		byKey:    make(map[string]int, len(doc.Categories)),
		fallback: -1,
	}
	prefixes := make(map[string]string)
	numerics := make(map[string]string)
	normalized := make(map[string]string)

	for _, c := range doc.Categories {
		if c.Key == "" {
			return nil, fmt.Errorf("category with empty key")
		}
		if _, dup := t.byKey[c.Key]; dup {
			return nil, fmt.Errorf("duplicate category key %q", c.Key)
		}
		if !prefixPattern.MatchString(c.Prefix) {
			return nil, fmt.Errorf("category %q: prefix %q must be 4 uppercase letters", c.Key, c.Prefix)
		}
		if !numericPattern.MatchString(c.NumericPrefix) {
			return nil, fmt.Errorf("category %q: numeric prefix %q must be 2 digits", c.Key, c.NumericPrefix)
		}
		if other, dup := prefixes[c.Prefix]; dup {
			return nil, fmt.Errorf("category %q: prefix %s already used by %q", c.Key, c.Prefix, other)
		}
		if other, dup := numerics[c.NumericPrefix]; dup {
			return nil, fmt.Errorf("category %q: numeric prefix %s already used by %q", c.Key, c.NumericPrefix, other)
		}
		prefixes[c.Prefix] = c.Key
		numerics[c.NumericPrefix] = c.Key

		var terms []string
		for _, s := range append([]string{c.Key}, c.Aliases...) {
			n := textnorm.Normalize(s)
			if n == "" {
				return nil, fmt.Errorf("category %q: term %q normalizes to nothing", c.Key, s)
			}
			if other, dup := normalized[n]; dup && other != c.Key {
				return nil, fmt.Errorf("category %q: term %q already used by %q", c.Key, s, other)
			}
			normalized[n] = c.Key
			terms = append(terms, n)
		}

		c.Aliases = append([]string(nil), c.Aliases...)
		t.byKey[c.Key] = len(t.entries)
		t.entries = append(t.entries, c)
		t.terms = append(t.terms, terms)
	}

	idx, ok := t.byKey[doc.Fallback]
	if !ok {
		return nil, fmt.Errorf("fallback category %q not in table", doc.Fallback)
	}
	t.fallback = idx
	return t, nil
}

// Classify maps a free-text label onto a canonical category. It never fails:
// blank or unrecognized labels resolve to the fallback entry.
func (t *Table) Classify(label string) Category {
	n := textnorm.Normalize(label)
	if n == "" {
		return t.Fallback()
	}

	for i, terms := range t.terms {
		for _, term := range terms {
			if term == n {
				return t.entries[i]
			}
		}
	}

	for i, terms := range t.terms {
		for _, term := range terms {
			if strings.Contains(n, term) || strings.Contains(term, n) {
				return t.entries[i]
			}
		}
	}

	return t.Fallback()
}

// Fallback returns the designated catch-all category.
func (t *Table) Fallback() Category {
	return t.entries[t.fallback]
}

// Lookup returns the category with the given canonical key.
func (t *Table) Lookup(key string) (Category, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return Category{}, false
	}
	return t.entries[i], true
}

// Entries returns a copy of the table in declaration order.
func (t *Table) Entries() []Category {
	out := make([]Category, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of categories, fallback included.
func (t *Table) Len() int {
	return len(t.entries)
}
