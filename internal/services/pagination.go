package services

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination clamps page to >= 1 and limit to 1..100, defaulting limit to 20.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }

// PageInfo describes the page returned alongside a listing.
type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func (p Pagination) Info(total int64) PageInfo {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
