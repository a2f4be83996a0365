package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Page is a parsed ?page=&limit= pair. Page is 1-based.
type Page struct {
	Number int
	Limit  int
}

// Offset is the number of rows before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// pageFromQuery reads page and limit, falling back to page 1 and
// defaultPageSize and capping the limit at maxPageSize.
func pageFromQuery(r *http.Request) Page {
	q := r.URL.Query()
	p := Page{Number: 1, Limit: defaultPageSize}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, maxPageSize)
	}
	return p
}

// PageMeta describes where a list page sits in the full result.
type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// PageResponse is the body of every list endpoint.
type PageResponse[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageMeta `json:"pagination"`
}

func newPageResponse[T any](items []T, p Page, total int) PageResponse[T] {
	pages := max((total+p.Limit-1)/p.Limit, 1)
	return PageResponse[T]{
		Data: orEmpty(items),
		Pagination: PageMeta{
			Page:       p.Number,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: pages,
			HasMore:    p.Number < pages,
		},
	}
}
