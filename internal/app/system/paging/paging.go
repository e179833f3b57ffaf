// internal/app/system/paging/paging.go
//
// Package paging implements look-ahead offset pagination for feed pages:
// fetch one row beyond the page size, trim it, and report whether a next
// page exists.
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the number of entries shown per feed page.
// Keep this as an int because call sites add/subtract and then
// cast to int64 for Mongo Find().SetLimit().
const PageSize = 50

// LimitPlusOne returns PageSize+1 as int64 for look-ahead pagination
// (fetch one extra document to detect hasNext).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	s := query.Get(r, "start")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Skip converts a 1-based start index to the offset for Find().SetSkip().
func Skip(start int) int64 {
	if start < 1 {
		start = 1
	}
	return int64(start - 1)
}

// Trim trims a slice fetched with LimitPlusOne down to one page and
// reports whether a next page exists.
func Trim[T any](rows []T) ([]T, bool) {
	if len(rows) > PageSize {
		return rows[:PageSize], true
	}
	return rows, false
}
