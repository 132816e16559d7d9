package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// page is the offset window a list endpoint was asked for.
type page struct {
	Limit  int
	Offset int
}

// pageFromRequest reads ?limit= and ?offset= off the query string, clamping
// the limit to [1, maxPageLimit] and the offset to non-negative.
func pageFromRequest(r *http.Request) page {
	q := r.URL.Query()

	p := page{Limit: defaultPageLimit}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= maxPageLimit {
		p.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		p.Offset = n
	}

	return p
}

// meta describes the window relative to the full result set for the response
// envelope.
func (p page) meta(total int) paginationMeta {
	return paginationMeta{
		Limit:  p.Limit,
		Offset: p.Offset,
		Total:  total,
	}
}

type paginationMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// pageOf returns the slice of items falling inside the window.
func pageOf[T any](items []T, p page) []T {
	lo := min(p.Offset, len(items))
	hi := min(lo+p.Limit, len(items))
	return items[lo:hi]
}
