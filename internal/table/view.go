package table

import (
	"context"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

// Status is the state of one fetch target
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FetchError describes the last failed fetch of a target
type FetchError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	return &FetchError{Kind: backend.Kind(err), Message: err.Error()}
}

// View is a render-ready snapshot of a table
type View struct {
	Entity        domain.Entity        `json:"entity"`
	Query         string               `json:"query"`
	Filters       urlstate.FilterState `json:"filters"`
	SearchInput   string               `json:"searchInput"`
	ActiveFilters int                  `json:"activeFilters"`

	Rows       any   `json:"rows"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
	PageSizes  []int `json:"pageSizes"`

	Stages        []string           `json:"stages"`
	StageCounts   domain.StageCounts `json:"stageCounts"`
	Loading       bool               `json:"loading"`
	Status        Status             `json:"status"`
	Error         *FetchError        `json:"error,omitempty"`
	CountsLoading bool               `json:"countsLoading"`
	CountsError   *FetchError        `json:"countsError,omitempty"`

	Columns     []ColumnState `json:"columns"`
	Selected    []string      `json:"selected"`
	AllSelected bool          `json:"allSelected"`
}

// Table is the row-type independent surface of a Controller
type Table interface {
	Entity() domain.Entity
	Query() string
	View() View

	SetSearch(raw string)
	FlushSearch()
	SetStage(stage string) error
	SetFilter(key, value string) error
	SetMultiFilter(key string, values []string) error
	ToggleFilter(key, value string) error
	SetDateRange(r *urlstate.DateRange)
	ClearFilters()

	NextPage()
	PrevPage()
	JumpToPage(page int)
	SetPageSize(size int) error

	ToggleSort(column string, multi bool) error
	SetColumnVisible(column string, visible bool) error
	Select(id string, selected bool) error
	SelectPage(selected bool)
	Selected() []string

	Refresh()
	UpdatePriority(ctx context.Context, priority string) error
	UpdateStatus(ctx context.Context, id, status string) error

	Settle(ctx context.Context) error
	Close()
}
