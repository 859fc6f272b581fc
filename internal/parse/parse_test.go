package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{name: "pound sign", in: "£51.77", want: ptr(51.77)},
		{name: "mojibake pound", in: "Â£13.99", want: ptr(13.99)},
		{name: "surrounding whitespace", in: "  £ 7.00 \n", want: ptr(7)},
		{name: "integer", in: "$20", want: ptr(20)},
		{name: "leading dot", in: ".5", want: ptr(0.5)},
		{name: "trailing garbage keeps prefix", in: "1.2.3", want: ptr(1.2)},
		{name: "negative sign stripped", in: "-4.00", want: ptr(4)},
		{name: "words only", in: "free", want: nil},
		{name: "empty", in: "", want: nil},
		{name: "dot only", in: "£.", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Price(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseAvailability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Availability
	}{
		{in: "In stock (19 available)", want: Availability{InStock: true, StockCount: 19, Raw: "In stock (19 available)"}},
		{in: "In stock", want: Availability{InStock: true, StockCount: 1, Raw: "In stock"}},
		{in: "Out of stock", want: Availability{InStock: false, StockCount: 0, Raw: "Out of stock"}},
		{in: "\n\n    In stock\n   (3 Available)\n", want: Availability{InStock: true, StockCount: 3, Raw: "In stock (3 Available)"}},
		{in: "IN STOCK", want: Availability{InStock: true, StockCount: 1, Raw: "IN STOCK"}},
		{in: "", want: Availability{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseAvailability(tt.in))
		})
	}
}

func TestRating(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, *Rating("star-rating Three"))
	require.Equal(t, 1, *Rating("One star-rating"))
	require.Equal(t, 5, *Rating("  star-rating\tFive "))
	assert.Nil(t, Rating("star-rating"))
	assert.Nil(t, Rating("star-rating three"))
	assert.Nil(t, Rating("star-rating Zero"))
	assert.Nil(t, Rating(""))

	// First word in One..Five order wins, not first in the input.
	require.Equal(t, 2, *Rating("Four Two"))
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{name: "relative", base: "https://site/catalogue/", ref: "book_1/index.html", want: "https://site/catalogue/book_1/index.html"},
		{name: "parent segments", base: "https://books.toscrape.com/catalogue/page-2.html", ref: "../media/cache/a.jpg", want: "https://books.toscrape.com/media/cache/a.jpg"},
		{name: "root relative", base: "https://site/a/b.html", ref: "/c.html", want: "https://site/c.html"},
		{name: "absolute ref", base: "https://site/", ref: "http://other/x", want: "http://other/x"},
		{name: "sibling page", base: "https://site/catalogue/page-1.html", ref: "page-2.html", want: "https://site/catalogue/page-2.html"},
		{name: "malformed ref", base: "https://site/", ref: "http://[::1", want: "http://[::1"},
		{name: "relative base", base: "catalogue/", ref: "page-2.html", want: "page-2.html"},
		{name: "malformed base", base: "://nope", ref: "page-2.html", want: "page-2.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeURL(tt.base, tt.ref))
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", CollapseSpace("  a \n\t b   c  "))
	assert.Equal(t, "", CollapseSpace(" \n "))
}

func ptr(v float64) *float64 {
	return &v
}
