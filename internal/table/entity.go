package table

import (
	"context"
	"errors"
	"net/url"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/query"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

var (
	ErrUnknownStage    = errors.New("unknown stage")
	ErrUnknownFilter   = errors.New("unknown filter")
	ErrInvalidPageSize = errors.New("page size not allowed")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownRow      = errors.New("row is not on the current page")
	ErrNoSelection     = errors.New("no rows selected")
	ErrClosed          = errors.New("table closed")
)

// Fetcher loads rows and stage counts for a table
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, params url.Values) (domain.ServerPage[T], error)
	FetchCounts(ctx context.Context, params url.Values) (domain.StageCounts, error)
}

// Mutator applies bulk actions to explicit row ids
type Mutator interface {
	UpdatePriority(ctx context.Context, ids []string, priority string) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// Source is everything a controller needs from the backend
type Source[T any] interface {
	Fetcher[T]
	Mutator
}

var _ Source[domain.Lead] = (*backend.Source[domain.Lead])(nil)

// Column describes a table column. Compare is required for sortable columns.
type Column[T any] struct {
	Key      string
	Label    string
	Sortable bool
	Compare  func(a, b T) int
}

// Entity binds the URL schema, query spec, endpoints and columns of one row type
type Entity[T any] struct {
	Name      domain.Entity
	Schema    *urlstate.Schema
	Query     *query.Spec
	Endpoints backend.Endpoints
	RowID     func(T) string
	Columns   []Column[T]
}

func (e *Entity[T]) column(key string) (Column[T], bool) {
	for _, c := range e.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column[T]{}, false
}
