// Package pagination computes page windows over dense project ranks.
//
// Ranks are ordinal positions of distinct project ids ordered ascending, so a
// deleted id never leaves a hole that shifts later pages.
package pagination

import (
	"math"

	"geo-bknd/internal/apperr"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Window is an inclusive rank range [Start, End].
type Window struct {
	Page  int
	Size  int
	Start int
	End   int
}

// NewWindow validates page and size and returns the rank window for the page.
func NewWindow(page, size int) (Window, error) {
	if page < 1 {
		return Window{}, apperr.BadRequest("page must be greater than or equal to 1.")
	}
	if size < 1 || size > MaxSize {
		return Window{}, apperr.BadRequest("size must be between 1 and %d.", MaxSize)
	}
	// The last rank of the page must fit in an int.
	if page-1 > (math.MaxInt-size)/size {
		return Window{}, apperr.BadRequest("page is out of range.")
	}

	start := (page-1)*size + 1
	return Window{
		Page:  page,
		Size:  size,
		Start: start,
		End:   start + size - 1,
	}, nil
}

// Pages returns ceil(total / size), or 0 for an empty corpus.
func Pages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return pages
}
