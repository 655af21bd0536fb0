// Package pagination provides page/limit and sort helpers shared by list endpoints.
package pagination

import (
	"math"
	"strings"
)

// Page size bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// New creates a new Pagination with defaults applied.
// Page is capped so that Offset never overflows.
func New(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultLimit
	}
	if perPage > MaxLimit {
		perPage = MaxLimit
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	return p.PerPage
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ParseSortOrder accepts asc/desc in any case. Anything else yields fallback.
func ParseSortOrder(s string, fallback SortOrder) SortOrder {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(SortAsc):
		return SortAsc
	case string(SortDesc):
		return SortDesc
	}
	return fallback
}

// Sort is a field and direction to order results by.
type Sort struct {
	Field string
	Order SortOrder
}

// ResolveSort maps a user-facing field onto a column using allowed.
// Unknown fields fall back to def, and so does an empty order.
func ResolveSort(field, order string, allowed map[string]string, def Sort) Sort {
	column, ok := allowed[strings.TrimSpace(field)]
	if !ok {
		column = def.Field
	}
	return Sort{Field: column, Order: ParseSortOrder(order, def.Order)}
}

// SQL returns the ORDER BY clause body, e.g. "created_at DESC".
func (s Sort) SQL() string {
	order := s.Order
	if order != SortAsc {
		order = SortDesc
	}
	return s.Field + " " + string(order)
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Result represents a paginated result set.
type Result[T any] struct {
	Data []T
	Meta Meta
}

// NewResult creates a new paginated Result.
// TotalPages is ceil(total / limit); data beyond the last page is simply empty.
func NewResult[T any](data []T, total int64, p Pagination) Result[T] {
	if data == nil {
		data = make([]T, 0)
	}
	perPage := p.PerPage
	if perPage < 1 {
		perPage = DefaultLimit
	}

	totalPages := int(total / int64(perPage))
	if total%int64(perPage) > 0 {
		totalPages++
	}

	return Result[T]{
		Data: data,
		Meta: Meta{
			Page:       p.Page,
			Limit:      perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

// Map converts the items of a result, keeping its metadata.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	out := make([]U, 0, len(r.Data))
	for _, item := range r.Data {
		out = append(out, fn(item))
	}
	return Result[U]{Data: out, Meta: r.Meta}
}
