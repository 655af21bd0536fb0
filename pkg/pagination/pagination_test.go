package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		page, perPage int
		want          Pagination
	}{
		{"defaults", 0, 0, Pagination{Page: 1, PerPage: 20}},
		{"negative", -3, -1, Pagination{Page: 1, PerPage: 20}},
		{"clamped", 2, 500, Pagination{Page: 2, PerPage: 100}},
		{"passthrough", 3, 15, Pagination{Page: 3, PerPage: 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.page, tt.perPage))
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	assert.Equal(t, 0, New(1, 10).Offset())
	assert.Equal(t, 20, New(3, 10).Offset())
}

func TestPagination_OffsetHugePage(t *testing.T) {
	tests := []struct {
		page, perPage int
	}{
		{100000000000000000, 100},
		{math.MaxInt, 1},
		{math.MaxInt, 20},
		{math.MaxInt / 7, 7},
	}
	for _, tt := range tests {
		p := New(tt.page, tt.perPage)
		assert.GreaterOrEqual(t, p.Offset(), 0, "page=%d per_page=%d", tt.page, tt.perPage)
		assert.LessOrEqual(t, p.Page, tt.page)

		r := NewResult([]int{}, 42, p)
		assert.Empty(t, r.Data)
		assert.Equal(t, int64(42), r.Meta.Total)
	}
}

func TestNewResult_TotalPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{99, 10, 10},
	}
	for _, tt := range tests {
		r := NewResult([]int{}, tt.total, New(1, tt.limit))
		assert.Equal(t, tt.want, r.Meta.TotalPages, "total=%d limit=%d", tt.total, tt.limit)
		assert.Equal(t, tt.total, r.Meta.Total)
	}
}

func TestNewResult_NilDataBecomesEmpty(t *testing.T) {
	r := NewResult[string](nil, 5, New(9, 2))
	assert.NotNil(t, r.Data)
	assert.Empty(t, r.Data)
	assert.Equal(t, 9, r.Meta.Page)
	assert.Equal(t, 3, r.Meta.TotalPages)
}

func TestResolveSort(t *testing.T) {
	allowed := map[string]string{"name": "t.name", "created_at": "t.created_at"}
	def := Sort{Field: "t.created_at", Order: SortDesc}

	assert.Equal(t, Sort{Field: "t.name", Order: SortAsc}, ResolveSort("name", "asc", allowed, def))
	assert.Equal(t, def, ResolveSort("password", "", allowed, def))
	assert.Equal(t, Sort{Field: "t.created_at", Order: SortAsc}, ResolveSort("", "ASC", allowed, def))
	assert.Equal(t, "t.name DESC", Sort{Field: "t.name", Order: "sideways"}.SQL())
}

func TestMap(t *testing.T) {
	r := NewResult([]int{1, 2}, 2, New(1, 10))
	out := Map(r, func(i int) string { return string(rune('a' + i)) })
	assert.Equal(t, []string{"b", "c"}, out.Data)
	assert.Equal(t, r.Meta, out.Meta)
}
