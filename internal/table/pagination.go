package table

// Pager reconciles the server-reported total with the current page and page size
type Pager struct {
	Page     int
	PageSize int
	Total    int64
}

// TotalPages returns ceil(total/pageSize), or 0 when there are no rows
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// TotalPages returns the number of pages
func (p Pager) TotalPages() int {
	return TotalPages(p.Total, p.PageSize)
}

// HasNext reports whether Next moves
func (p Pager) HasNext() bool {
	tp := p.TotalPages()
	return tp > 0 && p.Page < tp
}

// HasPrev reports whether Prev moves
func (p Pager) HasPrev() bool {
	return p.Page > 1
}

// Next returns the following page, or the current one at the last page
func (p Pager) Next() int {
	if !p.HasNext() {
		return p.Page
	}
	return p.Page + 1
}

// Prev returns the preceding page, or the current one at page 1
func (p Pager) Prev() int {
	if !p.HasPrev() {
		return p.Page
	}
	return p.Page - 1
}

// Jump clamps a typed page number into [1, totalPages]
func (p Pager) Jump(page int) int {
	tp := p.TotalPages()
	if page > tp {
		page = tp
	}
	return max(page, 1)
}

// Clamp returns the current page clamped into range. With no rows the page stays as is.
func (p Pager) Clamp() int {
	if p.Total <= 0 {
		return max(p.Page, 1)
	}
	return p.Jump(p.Page)
}
