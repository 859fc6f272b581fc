// Package parse normalizes loosely structured catalog text into typed values.
// Every function is total: unparseable input degrades to nil or a default.
package parse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars  = regexp.MustCompile(`[^0-9.]`)
	leadingNumber  = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	availableCount = regexp.MustCompile(`(?i)(\d+) available`)
)

// ratingWords is checked in order; the first present token wins.
var ratingWords = []string{"One", "Two", "Three", "Four", "Five"}

// Price strips everything but digits and dots and parses the leading number,
// so "£51.77" yields 51.77. It returns nil when no number remains.
func Price(text string) *float64 {
	digits := nonPriceChars.ReplaceAllString(text, "")
	m := leadingNumber.FindString(digits)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Availability is the normalized stock state of a catalog entry.
type Availability struct {
	InStock    bool
	StockCount int
	// Raw is the whitespace-collapsed, trimmed source phrase.
	Raw string
}

// ParseAvailability reads phrases like "In stock (19 available)". Without an
// explicit count, StockCount is 1 when in stock and 0 otherwise.
func ParseAvailability(text string) Availability {
	raw := CollapseSpace(text)
	inStock := strings.Contains(strings.ToLower(raw), "in stock")
	count := 0
	if inStock {
		count = 1
	}
	if m := availableCount.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = n
		}
	}
	return Availability{InStock: inStock, StockCount: count, Raw: raw}
}

// Rating maps a class list such as "star-rating Three" to 1..5. Tokens are
// case-sensitive; nil means no rating word was present.
func Rating(classes string) *int {
	tokens := strings.Fields(classes)
	for i, word := range ratingWords {
		for _, tok := range tokens {
			if tok == word {
				v := i + 1
				return &v
			}
		}
	}
	return nil
}

// NormalizeURL resolves ref against base. It never fails: when either side
// cannot be parsed, or base is not absolute, ref is returned unchanged.
func NormalizeURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// CollapseSpace replaces whitespace runs with a single space and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
}
