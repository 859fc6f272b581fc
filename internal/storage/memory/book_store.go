// Package memory provides an in-process BookStore for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
)

// BookStore keeps records in maps guarded by a RWMutex.
type BookStore struct {
	mu    sync.RWMutex
	byID  map[string]catalog.BookRecord
	byURL map[string]string
	clock catalog.Clock
	ids   catalog.IDGenerator
}

var _ catalog.BookStore = (*BookStore)(nil)

// NewBookStore constructs an empty BookStore.
func NewBookStore(clock catalog.Clock, ids catalog.IDGenerator) *BookStore {
	return &BookStore{
		byID:  make(map[string]catalog.BookRecord),
		byURL: make(map[string]string),
		clock: clock,
		ids:   ids,
	}
}

// UpsertBook inserts rec or overwrites the mutable fields of the record with
// the same DetailURL, keeping its ID and CreatedAt.
func (s *BookStore) UpsertBook(ctx context.Context, rec catalog.BookRecord) (catalog.BookRecord, error) {
	if err := ctx.Err(); err != nil {
		return catalog.BookRecord{}, err
	}
	if rec.DetailURL == "" {
		return catalog.BookRecord{}, errors.New("detail url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	stored := rec.Clone()
	if id, ok := s.byURL[rec.DetailURL]; ok {
		stored.ID = id
		stored.CreatedAt = s.byID[id].CreatedAt
	} else {
		id, err := s.ids.NewID()
		if err != nil {
			return catalog.BookRecord{}, fmt.Errorf("allocate record id: %w", err)
		}
		stored.ID = id
		stored.CreatedAt = now
		s.byURL[rec.DetailURL] = id
	}
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored
	return stored.Clone(), nil
}

// ListBooks filters, sorts and slices the stored records.
func (s *BookStore) ListBooks(ctx context.Context, q catalog.Query) (catalog.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return catalog.ListResult{}, err
	}
	s.mu.RLock()
	matched := make([]catalog.BookRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		if q.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b catalog.BookRecord) int {
		switch {
		case q.Less(a, b):
			return -1
		case q.Less(b, a):
			return 1
		default:
			return 0
		}
	})

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	out := make([]catalog.BookRecord, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, rec.Clone())
	}
	return catalog.ListResult{Records: out, Total: total}, nil
}

// GetBook returns the record with id or catalog.ErrNotFound.
func (s *BookStore) GetBook(ctx context.Context, id string) (catalog.BookRecord, error) {
	if err := ctx.Err(); err != nil {
		return catalog.BookRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return catalog.BookRecord{}, catalog.ErrNotFound
	}
	return rec.Clone(), nil
}

// Len returns the number of stored records.
func (s *BookStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close implements catalog.BookStore; it performs no action.
func (s *BookStore) Close() {}
