// Package codes mints item identifiers: a category mnemonic (PREFIX-NNN), a
// 13-digit numeric code with a check digit, and the scan payload text.
//
// The allocator only computes candidates. Writing them is the caller's job,
// and a concurrent writer may still win the race; callers must treat a
// uniqueness violation on insert as a signal to allocate again.
package codes

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/evidenca/internal/category"
	"github.com/erazemk/evidenca/internal/model"
)

// MaxAttempts bounds regular allocation before falling back to a synthetic code.
const MaxAttempts = 10

// MaxFallbackShift bounds how far past the clock fallback codes may move.
const MaxFallbackShift = 5 * time.Minute

// Index is the read-only view of the item store the allocator needs.
type Index interface {
	// MaxMnemonicSequence returns the highest sequence ever issued for a
	// mnemonic prefix, or 0.
	MaxMnemonicSequence(ctx context.Context, prefix string) (int, error)
	// CountCreatedBetween counts items created in [from, to).
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	// CodeExists reports whether code is held by any item or is retired.
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Codes is the result of a successful allocation.
type Codes struct {
	Mnemonic string
	Numeric  string
	Category category.Category
	// Sequence is the mnemonic sequence number, 0 for fallback codes.
	Sequence int
	Attempts int
	Fallback bool
}

// Allocator produces collision-checked identifier pairs.
type Allocator struct {
	Index Index
	Table *category.Table

	// Now is the clock used for the numeric time component, the daily
	// counter window and fallback codes.
	Now func() time.Time
	// Intn returns a value in [0, n).
	Intn func(n int) int
}

// NewAllocator returns an allocator using the wall clock and math/rand.
func NewAllocator(idx Index, table *category.Table) *Allocator {
	return &Allocator{
		Index: idx,
		Table: table,
		Now:   time.Now,
		Intn:  rand.IntN,
	}
}

// NextMnemonic returns the next PREFIX-NNN code for a category.
func (a *Allocator) NextMnemonic(ctx context.Context, c category.Category) (string, error) {
	code, _, err := a.nextMnemonic(ctx, c)
	return code, err
}

func (a *Allocator) nextMnemonic(ctx context.Context, c category.Category) (string, int, error) {
	last, err := a.Index.MaxMnemonicSequence(ctx, c.Prefix)
	if err != nil {
		return "", 0, fmt.Errorf("reading mnemonic sequence for %s: %w", c.Prefix, err)
	}
	return FormatMnemonic(c.Prefix, last+1), last + 1, nil
}

// FormatMnemonic formats a mnemonic code, zero-padding to at least 3 digits.
func FormatMnemonic(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// numericFiller pads the numeric code to 12 digits before the check digit.
const numericFiller = "0"

// NextNumeric returns a 13-digit code: numeric prefix (2), HHMMSS (6), a
// filler 0, the daily counter (3) and the check digit. The daily counter
// wraps after 999 items in one day.
func (a *Allocator) NextNumeric(ctx context.Context, c category.Category) (string, error) {
	now := a.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := a.Index.CountCreatedBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("counting items created today: %w", err)
	}

	base := fmt.Sprintf("%s%s%s%03d", c.NumericPrefix, now.Format("150405"), numericFiller, (count+1)%1000)
	check, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return base + string(rune('0'+check)), nil
}

// AllocateAll classifies the category label and returns a unique pair of
// codes. Collisions are retried up to MaxAttempts times, after which a
// synthetic fallback code is used for both fields. Besides validation and
// storage errors, model.ErrCodeConflict is returned when every fallback
// code within MaxFallbackShift is taken.
func (a *Allocator) AllocateAll(ctx context.Context, name, categoryLabel string) (Codes, error) {
	if strings.TrimSpace(name) == "" {
		return Codes{}, fmt.Errorf("%w: name is required", model.ErrValidation)
	}

	c := a.Table.Classify(categoryLabel)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		mnemonic, seq, err := a.nextMnemonic(ctx, c)
		if err != nil {
			return Codes{}, err
		}
		numeric, err := a.NextNumeric(ctx, c)
		if err != nil {
			return Codes{}, err
		}

		taken, err := a.anyExists(ctx, mnemonic, numeric)
		if err != nil {
			return Codes{}, err
		}
		if !taken {
			return Codes{Mnemonic: mnemonic, Numeric: numeric, Category: c, Sequence: seq, Attempts: attempt}, nil
		}
	}

	codes, err := a.fallback(ctx, c)
	codes.Attempts = MaxAttempts
	return codes, err
}

// AllocateFallback skips the regular generators and returns a synthetic code.
// Callers use it when inserts keep losing races for the regular codes.
func (a *Allocator) AllocateFallback(ctx context.Context, name, categoryLabel string) (Codes, error) {
	if strings.TrimSpace(name) == "" {
		return Codes{}, fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	return a.fallback(ctx, a.Table.Classify(categoryLabel))
}

func (a *Allocator) fallback(ctx context.Context, c category.Category) (Codes, error) {
	now := a.Now()
	start := a.Intn(900)
	for shift := time.Duration(0); shift <= MaxFallbackShift; shift += time.Second {
		for i := 0; i < 900; i++ {
			code := FallbackCode(now.Add(shift), 100+(start+i)%900)
			taken, err := a.Index.CodeExists(ctx, code)
			if err != nil {
				return Codes{}, fmt.Errorf("checking fallback code: %w", err)
			}
			if !taken {
				return Codes{Mnemonic: code, Numeric: code, Category: c, Fallback: true}, nil
			}
		}
	}
	return Codes{}, fmt.Errorf("%w: no free fallback code within %s of %s",
		model.ErrCodeConflict, MaxFallbackShift, now.Format("20060102150405"))
}

func (a *Allocator) anyExists(ctx context.Context, codes ...string) (bool, error) {
	for _, code := range codes {
		taken, err := a.Index.CodeExists(ctx, code)
		if err != nil {
			return false, fmt.Errorf("checking code %s: %w", code, err)
		}
		if taken {
			return true, nil
		}
	}
	return false, nil
}

// FallbackCode formats a synthetic code: ITEM-<YYYYmmddHHMMSS>-<suffix>.
func FallbackCode(t time.Time, suffix int) string {
	return fmt.Sprintf("ITEM-%s-%03d", t.Format("20060102150405"), suffix)
}

var errNotDigits = errors.New("expected 12 digits")

// CheckDigit computes the check digit for a 12-digit string. Digits at odd
// 1-indexed positions weigh 3, the rest weigh 1.
func CheckDigit(digits string) (int, error) {
	if len(digits) != 12 {
		return 0, fmt.Errorf("%w: %w, got %q", model.ErrValidation, errNotDigits, digits)
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("%w: %w, got %q", model.ErrValidation, errNotDigits, digits)
		}
		if i%2 == 0 {
			sum += int(d-'0') * 3
		} else {
			sum += int(d - '0')
		}
	}
	return (10 - sum%10) % 10, nil
}

// ValidNumeric reports whether code is 13 digits with a correct check digit.
func ValidNumeric(code string) bool {
	if len(code) != 13 {
		return false
	}
	check, err := CheckDigit(code[:12])
	if err != nil {
		return false
	}
	return int(code[12]-'0') == check
}

// PayloadNameLimit is the maximum number of name characters in a payload.
const PayloadNameLimit = 30

// Payload builds the scan payload ITEM:<id>|<mnemonic>|<name>|<category>.
func Payload(item model.Item) string {
	name := item.Name
	if utf8.RuneCountInString(name) > PayloadNameLimit {
		name = string([]rune(name)[:PayloadNameLimit])
	}
	return fmt.Sprintf("ITEM:%d|%s|%s|%s", item.ID, item.MnemonicCode, name, item.CategoryKey)
}
