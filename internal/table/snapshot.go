package table

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/straye-as/salesdesk/internal/domain"
)

// Snapshot parses rawQuery, fetches page data and stage counts in parallel and
// returns the resulting view. A counts failure is reported in the view; a page
// failure is returned. An out-of-range page is clamped and fetched again.
func Snapshot[T any](ctx context.Context, e *Entity[T], src Fetcher[T], rawQuery string, timeout time.Duration) (View, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := e.Schema.Parse(strings.TrimPrefix(rawQuery, "?"))

	var (
		page      domain.ServerPage[T]
		counts    domain.StageCounts
		countsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = src.FetchPage(gctx, e.Query.Page(state))
		return timeoutAware(gctx, err)
	})
	if e.Endpoints.Counts != "" {
		g.Go(func() error {
			counts, countsErr = src.FetchCounts(gctx, e.Query.Counts(state))
			countsErr = timeoutAware(gctx, countsErr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	pager := Pager{Page: state.Page, PageSize: state.PageSize, Total: page.Total}
	if clamped := pager.Clamp(); clamped != state.Page {
		state.Page = clamped
		refetched, err := src.FetchPage(ctx, e.Query.Page(state))
		if err != nil {
			return View{}, timeoutAware(ctx, err)
		}
		page = refetched
		pager = Pager{Page: state.Page, PageSize: state.PageSize, Total: page.Total}
	}

	if counts == nil {
		counts = domain.StageCounts{}
	}
	rows := sortRows(page.Data, state.Sort, e)
	if rows == nil {
		rows = []T{}
	}
	return View{
		Entity:        e.Name,
		Query:         e.Schema.Encode(state).Encode(),
		Filters:       state,
		SearchInput:   state.Search,
		ActiveFilters: state.ActiveFilterCount(),
		Rows:          rows,
		Total:         page.Total,
		Page:          state.Page,
		PageSize:      state.PageSize,
		TotalPages:    pager.TotalPages(),
		HasNext:       pager.HasNext(),
		HasPrev:       pager.HasPrev(),
		PageSizes:     slices.Clone(e.Schema.PageSizes),
		Stages:        slices.Clone(e.Schema.Stages),
		StageCounts:   counts,
		Status:        StatusSuccess,
		CountsError:   newFetchError(countsErr),
		Columns:       columnStates(e, nil, state.Sort),
		Selected:      []string{},
	}, nil
}
