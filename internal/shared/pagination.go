package shared

import "math"

const (
	// DefaultPerPage is used when a listing does not specify a page size.
	DefaultPerPage = 20
	// MaxPerPage caps page sizes requested by clients.
	MaxPerPage = 200
)

// ListFilters represents standard list filters shared by the listing endpoints.
type ListFilters struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
}

// Normalize fills defaults and clamps the page size.
func (f ListFilters) Normalize() ListFilters {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	if f.SortDir != "desc" {
		f.SortDir = "asc"
	}
	return f
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Paginate slices items for the requested page.
func Paginate[T any](items []T, f ListFilters) ([]T, Pagination) {
	f = f.Normalize()
	page := NewPagination(f.Page, f.PerPage, len(items))
	start := f.Offset()
	if start >= len(items) {
		return []T{}, page
	}
	end := start + f.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page
}
