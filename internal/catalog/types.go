package catalog

import (
	"net/http"
	"time"
)

// BookRecord is the sole persisted entity. DetailURL is its natural key; an
// href that could not be resolved is kept verbatim.
type BookRecord struct {
	ID               string    `json:"_id"`
	Title            string    `json:"title" validate:"required"`
	Price            *float64  `json:"price" validate:"omitnil,gte=0"`
	Rating           *int      `json:"rating" validate:"omitnil,min=1,max=5"`
	InStock          bool      `json:"inStock"`
	StockCount       int       `json:"stockCount" validate:"gte=0"`
	AvailabilityText string    `json:"availabilityText"`
	DetailURL        string    `json:"detailUrl" validate:"required"`
	ImageURL         *string   `json:"imageUrl"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no pointers with r.
func (r BookRecord) Clone() BookRecord {
	cp := r
	if r.Price != nil {
		v := *r.Price
		cp.Price = &v
	}
	if r.Rating != nil {
		v := *r.Rating
		cp.Rating = &v
	}
	if r.ImageURL != nil {
		v := *r.ImageURL
		cp.ImageURL = &v
	}
	return cp
}

// Page is the extraction result for one catalog listing page.
type Page struct {
	URL     string
	Records []BookRecord
	// NextURL is empty when the page has no next link.
	NextURL string
	// Skipped counts entries dropped for lacking a title or detail link.
	Skipped int
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
