package services

// Page size bounds for list endpoints
const (
	DefaultPageSize = 6
	MaxPageSize     = 100
)

// Pagination selects a 1-based page of a list
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps the page to at least 1 and the limit to [1, MaxPageSize]
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset is the number of rows before the page
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}
