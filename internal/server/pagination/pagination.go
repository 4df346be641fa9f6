// Package pagination parses and bounds offset pagination parameters.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultLimit is the page size used when the client sends none.
	DefaultLimit = 10
	// MaxLimit bounds the page size a client may request.
	MaxLimit = 100
)

// Params is a validated page/limit pair. Pages are 1-based.
type Params struct {
	Page  int
	Limit int
}

// FromQuery parses "page" and "limit" from a request query, applying
// defaults and bounds. Invalid values are a client error.
func FromQuery(q url.Values) (Params, error) {
	p := Params{Page: 1, Limit: DefaultLimit}

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return Params{}, fmt.Errorf("invalid 'page' parameter: must be a positive integer")
		}
		p.Page = page
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 || limit > MaxLimit {
			return Params{}, fmt.Errorf("invalid 'limit' parameter: must be between 1 and %d", MaxLimit)
		}
		p.Limit = limit
	}

	return p, nil
}

// Offset returns the number of items to skip for this page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Slice applies the params to an already sorted in-memory result set.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
