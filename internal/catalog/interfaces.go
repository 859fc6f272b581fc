package catalog

import (
	"context"
	"time"
)

// Fetcher retrieves the raw markup of a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Extractor turns one listing page into typed records and a next-page link.
type Extractor interface {
	Extract(pageURL string, body []byte) (Page, error)
}

// BookWriter persists records keyed by DetailURL.
type BookWriter interface {
	// UpsertBook inserts rec or overwrites the record sharing its DetailURL.
	// The returned record carries the store-assigned ID and timestamps.
	UpsertBook(ctx context.Context, rec BookRecord) (BookRecord, error)
}

// BookReader serves read-only queries over persisted records.
type BookReader interface {
	ListBooks(ctx context.Context, q Query) (ListResult, error)
	// GetBook returns ErrNotFound for unknown or malformed ids.
	GetBook(ctx context.Context, id string) (BookRecord, error)
}

// BookStore is the full store surface owned by the process.
type BookStore interface {
	BookWriter
	BookReader
	Close()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record and run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
