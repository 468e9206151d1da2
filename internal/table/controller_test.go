package table_test

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/table"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type pageFunc func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error)

type fakeLeads struct {
	mu          sync.Mutex
	page        pageFunc
	counts      func(ctx context.Context, params url.Values) (domain.StageCounts, error)
	pageCalls   []url.Values
	countCalls  []url.Values
	priorityErr error
	priorityIDs []string
	priority    string
}

func (f *fakeLeads) FetchPage(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, params)
	fn := f.page
	f.mu.Unlock()
	if fn == nil {
		return domain.ServerPage[domain.Lead]{Data: []domain.Lead{}}, nil
	}
	return fn(ctx, params)
}

func (f *fakeLeads) FetchCounts(ctx context.Context, params url.Values) (domain.StageCounts, error) {
	f.mu.Lock()
	f.countCalls = append(f.countCalls, params)
	fn := f.counts
	f.mu.Unlock()
	if fn == nil {
		return domain.StageCounts{"warm": 1}, nil
	}
	return fn(ctx, params)
}

func (f *fakeLeads) UpdatePriority(ctx context.Context, ids []string, priority string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priorityErr != nil {
		return f.priorityErr
	}
	f.priorityIDs = slices.Clone(ids)
	f.priority = priority
	return nil
}

func (f *fakeLeads) UpdateStatus(ctx context.Context, id, status string) error {
	return backend.ErrUnsupported
}

func (f *fakeLeads) setPage(fn pageFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = fn
}

func (f *fakeLeads) setCounts(fn func(ctx context.Context, params url.Values) (domain.StageCounts, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = fn
}

func (f *fakeLeads) pages() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.pageCalls)
}

func (f *fakeLeads) countRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.countCalls)
}

func leadRows(ids ...string) []domain.Lead {
	rows := make([]domain.Lead, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, domain.Lead{ID: id, Name: "lead " + id})
	}
	return rows
}

func serve(total int64, ids ...string) pageFunc {
	return func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		return domain.ServerPage[domain.Lead]{Data: leadRows(ids...), Total: total}, nil
	}
}

func newLeadTable(t *testing.T, query string, src *fakeLeads, opts table.Options) (*table.Controller[domain.Lead], *urlstate.MemoryLocation) {
	t.Helper()
	if opts.SearchDebounce == 0 {
		opts.SearchDebounce = 10 * time.Millisecond
	}
	loc := urlstate.NewMemoryLocation(query)
	c := table.New(table.Leads, src, loc, opts)
	t.Cleanup(func() {
		c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Settle(ctx)
	})
	return c, loc
}

func settle(t *testing.T, c table.Table) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Settle(ctx))
}

func rowIDs(v table.View) []string {
	rows := v.Rows.([]domain.Lead)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestController_InitialLoadCanonicalizesLocation(t *testing.T) {
	src := &fakeLeads{page: serve(2, "a", "b")}
	c, loc := newLeadTable(t, "?page=abc&stage=warm&pageSize=7&utm=mail", src, table.Options{})
	settle(t, c)

	assert.Equal(t, "stage=warm&utm=mail", loc.Query())

	calls := src.pages()
	require.Len(t, calls, 1)
	assert.Equal(t, url.Values{"stage": {"warm"}, "page": {"1"}, "pageSize": {"10"}}, calls[0])

	counts := src.countRequests()
	require.Len(t, counts, 1)
	assert.Empty(t, counts[0].Get("stage"))

	view := c.View()
	assert.Equal(t, []string{"a", "b"}, rowIDs(view))
	assert.Equal(t, table.StatusSuccess, view.Status)
	assert.False(t, view.Loading)
	assert.Equal(t, domain.StageCounts{"warm": 1}, view.StageCounts)
	assert.Equal(t, 1, view.TotalPages)
}

func TestController_StageSearchScenario(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, loc := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	require.NoError(t, c.SetStage("follow up"))
	c.SetSearch("acme")
	settle(t, c)

	calls := src.pages()
	assert.Equal(t, url.Values{
		"stage":    {"follow up"},
		"page":     {"1"},
		"pageSize": {"10"},
		"search":   {"acme"},
	}, calls[len(calls)-1])
	assert.Equal(t, "search=acme&stage=follow+up", loc.Query())
}

func TestController_SearchIsDebounced(t *testing.T) {
	src := &fakeLeads{page: serve(30, "a")}
	c, loc := newLeadTable(t, "page=3", src, table.Options{SearchDebounce: 30 * time.Millisecond})
	settle(t, c)
	before := len(src.pages())

	for _, s := range []string{"a", "ac", "acm", "acme"} {
		c.SetSearch(s)
	}
	assert.Equal(t, "acme", c.View().SearchInput)
	assert.Equal(t, "page=3", loc.Query())

	settle(t, c)

	calls := src.pages()[before:]
	require.Len(t, calls, 1)
	assert.Equal(t, "acme", calls[0].Get("search"))
	assert.Equal(t, "1", calls[0].Get("page"))
	assert.Equal(t, "search=acme", loc.Query())
}

func TestController_StaleResponseIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeLeads{}
	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		if params.Get("stage") == "" {
			<-gate
			return domain.ServerPage[domain.Lead]{Data: leadRows("old"), Total: 1}, nil
		}
		return domain.ServerPage[domain.Lead]{Data: leadRows("new"), Total: 1}, nil
	})
	c, _ := newLeadTable(t, "", src, table.Options{})

	require.NoError(t, c.SetStage("won"))
	require.Eventually(t, func() bool {
		return c.View().Status == table.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	close(gate)
	settle(t, c)

	assert.Equal(t, []string{"new"}, rowIDs(c.View()))
}

func TestController_SupersededRequestIsCanceled(t *testing.T) {
	canceled := make(chan struct{})
	src := &fakeLeads{}
	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		if params.Get("stage") == "" {
			<-ctx.Done()
			close(canceled)
			return domain.ServerPage[domain.Lead]{}, ctx.Err()
		}
		return domain.ServerPage[domain.Lead]{Data: leadRows("x"), Total: 1}, nil
	})
	c, _ := newLeadTable(t, "", src, table.Options{})

	require.NoError(t, c.SetStage("dead"))

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("superseded request was not canceled")
	}
	settle(t, c)
	view := c.View()
	assert.Nil(t, view.Error)
	assert.Equal(t, []string{"x"}, rowIDs(view))
}

func TestController_FailureKeepsPreviousData(t *testing.T) {
	src := &fakeLeads{page: serve(2, "a", "b")}
	c, _ := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		return domain.ServerPage[domain.Lead]{}, &backend.ServerError{Status: 500, Message: "boom"}
	})
	c.Refresh()
	settle(t, c)

	view := c.View()
	assert.Equal(t, []string{"a", "b"}, rowIDs(view))
	assert.Equal(t, int64(2), view.Total)
	assert.Equal(t, table.StatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, backend.KindServer, view.Error.Kind)
}

func TestController_CountsFailureDoesNotTouchRows(t *testing.T) {
	src := &fakeLeads{
		page: serve(1, "a"),
		counts: func(ctx context.Context, params url.Values) (domain.StageCounts, error) {
			return nil, backend.ErrTransport
		},
	}
	c, _ := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	view := c.View()
	assert.Equal(t, []string{"a"}, rowIDs(view))
	assert.Nil(t, view.Error)
	require.NotNil(t, view.CountsError)
	assert.Equal(t, backend.KindTransport, view.CountsError.Kind)
	assert.Equal(t, domain.StageCounts{}, view.StageCounts)
}

func TestController_StaleCountsAreDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeLeads{page: serve(1, "a")}
	src.setCounts(func(ctx context.Context, params url.Values) (domain.StageCounts, error) {
		if params.Get("ClosingMonth") == "" {
			<-gate
			return domain.StageCounts{"warm": 99}, nil
		}
		return domain.StageCounts{"warm": 1}, nil
	})
	c, _ := newLeadTable(t, "", src, table.Options{})

	require.NoError(t, c.ToggleFilter("ClosingMonth", "March"))
	require.Eventually(t, func() bool {
		return c.View().StageCounts["warm"] == 1
	}, time.Second, 5*time.Millisecond)

	close(gate)
	settle(t, c)

	view := c.View()
	assert.Equal(t, domain.StageCounts{"warm": 1}, view.StageCounts)
	assert.Nil(t, view.CountsError)
}

func TestController_CountsFailureKeepsPreviousCounts(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, _ := newLeadTable(t, "", src, table.Options{})
	settle(t, c)
	require.Equal(t, domain.StageCounts{"warm": 1}, c.View().StageCounts)

	src.setCounts(func(ctx context.Context, params url.Values) (domain.StageCounts, error) {
		return nil, backend.ErrTransport
	})
	c.Refresh()
	settle(t, c)

	view := c.View()
	assert.Equal(t, domain.StageCounts{"warm": 1}, view.StageCounts)
	require.NotNil(t, view.CountsError)
	assert.Equal(t, backend.KindTransport, view.CountsError.Kind)
	assert.Equal(t, []string{"a"}, rowIDs(view))
	assert.Nil(t, view.Error)
}

func TestController_TimeoutIsReported(t *testing.T) {
	src := &fakeLeads{}
	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		<-ctx.Done()
		return domain.ServerPage[domain.Lead]{}, ctx.Err()
	})
	c, _ := newLeadTable(t, "", src, table.Options{FetchTimeout: 20 * time.Millisecond})
	settle(t, c)

	view := c.View()
	require.NotNil(t, view.Error)
	assert.Equal(t, backend.KindTimeout, view.Error.Kind)
}

func TestController_StageChangeDoesNotRefetchCounts(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, _ := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	require.NoError(t, c.SetStage("warm"))
	settle(t, c)
	assert.Len(t, src.countRequests(), 1)

	require.NoError(t, c.ToggleFilter("ClosingMonth", "March"))
	settle(t, c)
	counts := src.countRequests()
	require.Len(t, counts, 2)
	assert.Equal(t, "3", counts[1].Get("ClosingMonth"))
}

func TestController_FilterTogglesRewriteLocation(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, loc := newLeadTable(t, "page=2", src, table.Options{})
	settle(t, c)

	require.NoError(t, c.ToggleFilter("State", "Odisha"))
	assert.Equal(t, "State=Odisha", loc.Query())
	require.NoError(t, c.ToggleFilter("State", "Bihar"))
	assert.Equal(t, "State=Odisha%2CBihar", loc.Query())
	require.NoError(t, c.ToggleFilter("State", "Odisha"))
	assert.Equal(t, "State=Bihar", loc.Query())
	require.NoError(t, c.ToggleFilter("State", "Bihar"))
	assert.Equal(t, "", loc.Query())

	assert.ErrorIs(t, c.ToggleFilter("Country", "IN"), table.ErrUnknownFilter)
	assert.ErrorIs(t, c.SetStage("lost"), table.ErrUnknownStage)
}

func TestController_PageSizeResetsPage(t *testing.T) {
	src := &fakeLeads{page: serve(100, "a")}
	c, loc := newLeadTable(t, "page=3", src, table.Options{})
	settle(t, c)

	require.NoError(t, c.SetPageSize(20))
	settle(t, c)

	assert.Equal(t, "pageSize=20", loc.Query())
	view := c.View()
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, 5, view.TotalPages)
	assert.ErrorIs(t, c.SetPageSize(7), table.ErrInvalidPageSize)
}

func TestController_OutOfRangePageIsClamped(t *testing.T) {
	src := &fakeLeads{page: serve(25, "a")}
	c, loc := newLeadTable(t, "page=9", src, table.Options{})
	settle(t, c)

	calls := src.pages()
	require.Len(t, calls, 2)
	assert.Equal(t, "9", calls[0].Get("page"))
	assert.Equal(t, "3", calls[1].Get("page"))
	assert.Equal(t, "page=3", loc.Query())
	assert.Equal(t, 3, c.View().Page)
}

func TestController_PageNavigation(t *testing.T) {
	src := &fakeLeads{page: serve(25, "a")}
	c, loc := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	c.PrevPage()
	assert.Equal(t, "", loc.Query())

	c.NextPage()
	c.NextPage()
	c.NextPage()
	assert.Equal(t, "page=3", loc.Query())
	assert.False(t, c.View().HasNext)

	c.JumpToPage(0)
	assert.Equal(t, "", loc.Query())
	c.JumpToPage(42)
	assert.Equal(t, "page=3", loc.Query())
	settle(t, c)
}

func TestController_NextDisabledWithoutRows(t *testing.T) {
	src := &fakeLeads{page: serve(0)}
	c, loc := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	c.NextPage()
	view := c.View()
	assert.Equal(t, 0, view.TotalPages)
	assert.False(t, view.HasNext)
	assert.False(t, view.HasPrev)
	assert.Equal(t, "", loc.Query())
}

func TestController_SortIsPageLocal(t *testing.T) {
	src := &fakeLeads{}
	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		return domain.ServerPage[domain.Lead]{Data: []domain.Lead{
			{ID: "1", Name: "beta"},
			{ID: "2", Name: "Alpha"},
			{ID: "3", Name: "gamma"},
		}, Total: 3}, nil
	})
	c, loc := newLeadTable(t, "", src, table.Options{})
	settle(t, c)
	before := len(src.pages())

	require.NoError(t, c.ToggleSort("name", false))
	assert.Equal(t, []string{"2", "1", "3"}, rowIDs(c.View()))
	assert.Equal(t, "sort=name%3Aasc", loc.Query())

	require.NoError(t, c.ToggleSort("name", false))
	assert.Equal(t, []string{"3", "1", "2"}, rowIDs(c.View()))

	require.NoError(t, c.ToggleSort("name", false))
	assert.Equal(t, []string{"1", "2", "3"}, rowIDs(c.View()))
	assert.Equal(t, "", loc.Query())

	assert.Len(t, src.pages(), before)
	assert.ErrorIs(t, c.ToggleSort("phone", false), table.ErrUnknownColumn)
}

func TestController_ColumnVisibility(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, loc := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	for _, col := range c.View().Columns {
		assert.True(t, col.Visible, col.Key)
	}

	require.NoError(t, c.SetColumnVisible("phone", false))
	for _, col := range c.View().Columns {
		assert.Equal(t, col.Key != "phone", col.Visible, col.Key)
	}
	assert.Equal(t, "", loc.Query())
	assert.ErrorIs(t, c.SetColumnVisible("nope", false), table.ErrUnknownColumn)
}

func TestController_SelectionIsPageScopedAndPurged(t *testing.T) {
	var mu sync.Mutex
	var emitted [][]string
	onSelect := func(ids []string) {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, ids)
	}

	src := &fakeLeads{}
	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		if params.Get("page") == "2" {
			return domain.ServerPage[domain.Lead]{Data: leadRows("c", "d"), Total: 4}, nil
		}
		return domain.ServerPage[domain.Lead]{Data: leadRows("a", "b"), Total: 4}, nil
	})
	c, _ := newLeadTable(t, "pageSize=1", src, table.Options{OnSelectionChange: onSelect})
	settle(t, c)

	c.SelectPage(true)
	view := c.View()
	assert.Equal(t, []string{"a", "b"}, view.Selected)
	assert.True(t, view.AllSelected)

	require.NoError(t, c.Select("b", false))
	assert.False(t, c.View().AllSelected)
	assert.ErrorIs(t, c.Select("zzz", true), table.ErrUnknownRow)

	c.NextPage()
	settle(t, c)

	assert.Empty(t, c.Selected())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, emitted, 3)
	assert.Equal(t, []string{"a", "b"}, emitted[0])
	assert.Equal(t, []string{"a"}, emitted[1])
	assert.Empty(t, emitted[2])
}

func TestController_UpdatePriority(t *testing.T) {
	src := &fakeLeads{page: serve(2, "a", "b")}
	c, _ := newLeadTable(t, "", src, table.Options{})
	settle(t, c)

	assert.ErrorIs(t, c.UpdatePriority(context.Background(), "high"), table.ErrNoSelection)

	require.NoError(t, c.Select("a", true))
	before := len(src.pages())
	require.NoError(t, c.UpdatePriority(context.Background(), "high"))
	settle(t, c)

	assert.Equal(t, []string{"a"}, src.priorityIDs)
	assert.Equal(t, "high", src.priority)
	assert.Len(t, src.pages(), before+1)
}

func TestController_UpdatePriorityFailureLeavesTable(t *testing.T) {
	src := &fakeLeads{page: serve(2, "a", "b"), priorityErr: &backend.ServerError{Status: 502}}
	c, _ := newLeadTable(t, "", src, table.Options{})
	settle(t, c)
	c.SelectPage(true)
	before := len(src.pages())

	err := c.UpdatePriority(context.Background(), "low")

	var serverErr *backend.ServerError
	assert.True(t, errors.As(err, &serverErr))
	assert.Len(t, src.pages(), before)
	assert.Equal(t, []string{"a", "b"}, c.Selected())
}

func TestController_DateRange(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, loc := newLeadTable(t, "page=2", src, table.Options{})
	settle(t, c)

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	c.SetDateRange(&urlstate.DateRange{From: from, To: to})
	settle(t, c)

	assert.Equal(t, "fromDate=2024-01-01&toDate=2024-01-31", loc.Query())
	calls := src.pages()
	assert.Equal(t, "2024-01-01", calls[len(calls)-1].Get("fromDate"))

	c.SetDateRange(&urlstate.DateRange{From: to, To: from})
	assert.Equal(t, "fromDate=2024-01-01&toDate=2024-01-31", loc.Query())

	c.SetDateRange(nil)
	assert.Equal(t, "", loc.Query())
}

func TestController_ClearFiltersKeepsPageSizeAndSort(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, loc := newLeadTable(t, "stage=won&State=Goa&priority=high&pageSize=50&sort=name:desc&page=2", src, table.Options{})
	settle(t, c)

	c.ClearFilters()
	settle(t, c)

	assert.Equal(t, "pageSize=50&sort=name%3Adesc", loc.Query())
}

func TestController_ClosedIgnoresActions(t *testing.T) {
	src := &fakeLeads{page: serve(1, "a")}
	c, loc := newLeadTable(t, "", src, table.Options{})
	settle(t, c)
	c.Close()

	assert.ErrorIs(t, c.SetStage("won"), table.ErrClosed)
	c.SetSearch("x")
	settle(t, c)
	assert.Equal(t, "", loc.Query())
}

func TestSnapshot(t *testing.T) {
	src := &fakeLeads{page: serve(25, "a", "b")}

	view, err := table.Snapshot(context.Background(), table.Leads, src, "?page=7&State=Goa&sort=name:desc", time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, view.Page)
	assert.Equal(t, []string{"b", "a"}, rowIDs(view))
	assert.Equal(t, "State=Goa&page=3&sort=name%3Adesc", view.Query)
	assert.Equal(t, domain.StageCounts{"warm": 1}, view.StageCounts)
	assert.Len(t, src.pages(), 2)
}

func TestSnapshot_PageFailure(t *testing.T) {
	src := &fakeLeads{}
	src.setPage(func(ctx context.Context, params url.Values) (domain.ServerPage[domain.Lead], error) {
		return domain.ServerPage[domain.Lead]{}, backend.ErrTransport
	})

	_, err := table.Snapshot(context.Background(), table.Leads, src, "", time.Second)
	assert.ErrorIs(t, err, backend.ErrTransport)
}
