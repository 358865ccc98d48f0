package domain

import "math"

const (
	maxPageLimit = 100
	// maxPageNumber keeps (number-1)*limit within an int for any clamped limit.
	maxPageNumber = math.MaxInt / maxPageLimit
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps a caller-supplied page request, falling back to defaultLimit.
func NewPage(number, limit, defaultLimit int) Page {
	if number < 1 {
		number = 1
	}
	if number > maxPageNumber {
		number = maxPageNumber
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 || p.Limit < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Limit
}

// Pagination is the response metadata for a paged listing.
type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
	Limit int `json:"limit"`
}

// Paginate computes page metadata; pages is the ceiling of total/limit.
func Paginate(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Number, Pages: pages, Total: total, Limit: p.Limit}
}
