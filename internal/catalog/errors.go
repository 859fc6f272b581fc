package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("book not found")
	// ErrCycleDetected is returned when a next link points at a page already visited in the run.
	ErrCycleDetected = errors.New("next-page cycle detected")
	// ErrPageLimitExceeded is returned when the catalog keeps paginating past the configured cap.
	ErrPageLimitExceeded = errors.New("page limit exceeded")
	// ErrCrawlInProgress is returned when another crawl run holds the run lock.
	ErrCrawlInProgress = errors.New("crawl already in progress")
)

// FetchError reports a transport or HTTP status failure retrieving a page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// WriteError reports a store failure while upserting a record.
type WriteError struct {
	DetailURL string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("upsert %s: %v", e.DetailURL, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// CrawlError wraps the failure that moved a crawl run into its FAILED state.
type CrawlError struct {
	// Stage is the driver state the failure occurred in.
	Stage   string
	PageURL string
	// Page is the 1-based position of PageURL in the run.
	Page int
	Err  error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl failed while %s page %d (%s): %v", e.Stage, e.Page, e.PageURL, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}
