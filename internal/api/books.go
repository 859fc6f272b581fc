package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type listResponse struct {
	Books      []catalog.BookRecord `json:"books"`
	Pagination pagination           `json:"pagination"`
}

type pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalBooks  int  `json:"totalBooks"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	q, page := parseListQuery(r.URL.Query())
	res, err := s.books.ListBooks(r.Context(), q)
	if err != nil {
		s.logger.Error("list books failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	books := res.Records
	if books == nil {
		books = []catalog.BookRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Books: books,
		Pagination: pagination{
			CurrentPage: page,
			TotalPages:  int(math.Ceil(float64(res.Total) / float64(q.Limit))),
			TotalBooks:  res.Total,
			HasNext:     q.Offset+len(books) < res.Total,
			HasPrev:     page > 1,
		},
	})
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.books.GetBook(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Book not found")
		return
	}
	if err != nil {
		s.logger.Error("get book failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// parseListQuery coerces list parameters. Bad values fall back to defaults or
// drop the filter; the request itself never fails.
func parseListQuery(v url.Values) (catalog.Query, int) {
	page := positiveInt(v.Get("page"), defaultPage)
	limit := min(positiveInt(v.Get("limit"), defaultLimit), maxLimit)
	// Keep (page-1)*limit within int.
	page = min(page, math.MaxInt/limit)

	q := catalog.Query{
		Search:    strings.TrimSpace(v.Get("search")),
		SortBy:    catalog.ParseSortField(v.Get("sortBy")),
		SortOrder: catalog.ParseSortOrder(v.Get("sortOrder")),
		Offset:    (page - 1) * limit,
		Limit:     limit,
	}
	if raw := v.Get("rating"); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			q.Rating = &n
		}
	}
	if raw := v.Get("inStock"); raw != "" {
		inStock := raw == "true"
		q.InStock = &inStock
	}
	q.MinPrice = optionalFloat(v.Get("minPrice"))
	q.MaxPrice = optionalFloat(v.Get("maxPrice"))
	return q, page
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func optionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
