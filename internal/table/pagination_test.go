package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/straye-as/salesdesk/internal/table"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
		{-3, 10, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.TotalPages(tt.total, tt.pageSize), "total=%d size=%d", tt.total, tt.pageSize)
	}
}

func TestPager_Bounds(t *testing.T) {
	last := table.Pager{Page: 3, PageSize: 10, Total: 25}
	assert.False(t, last.HasNext())
	assert.Equal(t, 3, last.Next())
	assert.Equal(t, 2, last.Prev())

	first := table.Pager{Page: 1, PageSize: 10, Total: 25}
	assert.False(t, first.HasPrev())
	assert.Equal(t, 1, first.Prev())
	assert.Equal(t, 2, first.Next())

	empty := table.Pager{Page: 1, PageSize: 10}
	assert.False(t, empty.HasNext())
	assert.Equal(t, 0, empty.TotalPages())
}

func TestPager_Jump(t *testing.T) {
	p := table.Pager{Page: 1, PageSize: 10, Total: 25}
	assert.Equal(t, 3, p.Jump(99))
	assert.Equal(t, 1, p.Jump(0))
	assert.Equal(t, 1, p.Jump(-4))
	assert.Equal(t, 2, p.Jump(2))

	empty := table.Pager{Page: 1, PageSize: 10}
	assert.Equal(t, 1, empty.Jump(5))
}

func TestPager_Clamp(t *testing.T) {
	assert.Equal(t, 3, table.Pager{Page: 9, PageSize: 10, Total: 25}.Clamp())
	assert.Equal(t, 2, table.Pager{Page: 2, PageSize: 10, Total: 25}.Clamp())
	assert.Equal(t, 4, table.Pager{Page: 4, PageSize: 10, Total: 0}.Clamp())
}
