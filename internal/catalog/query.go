package catalog

import (
	"strings"
)

// SortField names a sortable record attribute.
type SortField string

// Supported sort fields.
const (
	SortByTitle  SortField = "title"
	SortByPrice  SortField = "price"
	SortByRating SortField = "rating"
)

// SortOrder is the sort direction.
type SortOrder string

// Supported sort directions.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortField maps user input onto a SortField, defaulting to title.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortByPrice:
		return SortByPrice
	case SortByRating:
		return SortByRating
	default:
		return SortByTitle
	}
}

// ParseSortOrder returns SortDesc only for "desc"; anything else is ascending.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(s) == SortDesc {
		return SortDesc
	}
	return SortAsc
}

// Query filters, sorts, and paginates a book listing. Nil filters are unset.
type Query struct {
	// Search is a case-insensitive substring match on Title.
	Search    string
	Rating    *int
	InStock   *bool
	MinPrice  *float64
	MaxPrice  *float64
	SortBy    SortField
	SortOrder SortOrder
	Offset    int
	Limit     int
}

// ListResult is one page of matching records plus the total match count.
type ListResult struct {
	Records []BookRecord
	Total   int
}

// Matches reports whether rec satisfies every filter in q.
func (q Query) Matches(rec BookRecord) bool {
	if q.Search != "" && !strings.Contains(strings.ToLower(rec.Title), strings.ToLower(q.Search)) {
		return false
	}
	if q.Rating != nil && (rec.Rating == nil || *rec.Rating != *q.Rating) {
		return false
	}
	if q.InStock != nil && rec.InStock != *q.InStock {
		return false
	}
	if q.MinPrice != nil && (rec.Price == nil || *rec.Price < *q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && (rec.Price == nil || *rec.Price > *q.MaxPrice) {
		return false
	}
	return true
}

// Less orders a before b under q's sort. Null prices and ratings sort last in
// both directions; ties fall back to ID so pagination is stable.
func (q Query) Less(a, b BookRecord) bool {
	var cmp int
	switch q.SortBy {
	case SortByPrice:
		if c, ok := nullsLast(a.Price, b.Price); ok {
			return c < 0
		}
		if a.Price != nil {
			cmp = compareFloat(*a.Price, *b.Price)
		}
	case SortByRating:
		if c, ok := nullsLast(a.Rating, b.Rating); ok {
			return c < 0
		}
		if a.Rating != nil {
			cmp = *a.Rating - *b.Rating
		}
	default:
		cmp = strings.Compare(a.Title, b.Title)
	}
	if q.SortOrder == SortDesc {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp < 0
	}
	return a.ID < b.ID
}

// nullsLast decides orderings where exactly one value is nil. ok is false when
// both are present or both are nil.
func nullsLast[T any](a, b *T) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, false
	case a == nil:
		return 1, true
	case b == nil:
		return -1, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
