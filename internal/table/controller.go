// Package table runs server-paginated CRM tables whose view state lives in the
// location's query string.
//
// A Controller owns one table. Every user action is applied to a copy of the
// parsed FilterState, merged into the location and re-parsed, so the location
// stays the single source of truth. Page data and stage counts are fetched
// whenever the parameters derived from the location change; responses from
// superseded requests are discarded.
package table

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/debounce"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

// DefaultFetchTimeout bounds a single page or counts request
const DefaultFetchTimeout = 30 * time.Second

// Options tune a controller
type Options struct {
	Logger *zap.Logger
	// SearchDebounce is the search quiet period
	SearchDebounce time.Duration
	FetchTimeout   time.Duration
	// OnSelectionChange receives the sorted selected ids after every change.
	// It runs without the controller lock held.
	OnSelectionChange func(ids []string)
}

type target struct {
	generation uint64
	cancel     context.CancelFunc
	status     Status
	err        error
}

// begin supersedes any in-flight request and returns the new generation
func (t *target) begin(cancel context.CancelFunc) uint64 {
	if t.cancel != nil {
		t.cancel()
	}
	t.generation++
	t.cancel = cancel
	t.status = StatusLoading
	return t.generation
}

func (t *target) stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// searchValue is debounced search input tagged with the clear epoch it was
// typed in.
type searchValue struct {
	text  string
	epoch uint64
}

// Controller runs one table over rows of type T
type Controller[T any] struct {
	entity   *Entity[T]
	source   Source[T]
	location urlstate.Location
	logger   *zap.Logger
	timeout  time.Duration
	onSelect func([]string)
	search   *debounce.Debouncer[searchValue]

	mu            sync.Mutex
	state         urlstate.FilterState
	searchInput   string
	searchPending bool
	searchEpoch   uint64

	page  target
	rows  []T
	total int64

	counts      target
	stageCounts domain.StageCounts

	view presentation

	inflight int
	idle     chan struct{}
	closed   bool
}

var _ Table = (*Controller[domain.Lead])(nil)

// New creates a controller positioned at the location's query and starts the
// initial page and counts fetches. Schema keys in the location are rewritten
// to their canonical form; foreign keys are kept.
func New[T any](entity *Entity[T], source Source[T], location urlstate.Location, opts Options) *Controller[T] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	c := &Controller[T]{
		entity:   entity,
		source:   source,
		location: location,
		logger:   logger.With(zap.String("entity", string(entity.Name))),
		timeout:  timeout,
		onSelect: opts.OnSelectionChange,
		page:     target{status: StatusIdle},
		counts:   target{status: StatusIdle},
		view:     newPresentation(),
	}
	c.search = debounce.New(opts.SearchDebounce, c.commitSearch)

	current, _ := url.ParseQuery(location.Query())
	canonical := entity.Schema.Canonicalize(current)
	if encoded := canonical.Encode(); encoded != location.Query() {
		location.Replace(encoded)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = entity.Schema.ParseValues(canonical)
	c.searchInput = c.state.Search
	c.startPageLocked()
	c.startCountsLocked()
	return c
}

// Entity returns the table's entity name
func (c *Controller[T]) Entity() domain.Entity {
	return c.entity.Name
}

// Query returns the current location query
func (c *Controller[T]) Query() string {
	return c.location.Query()
}

// State returns a copy of the parsed location state
func (c *Controller[T]) State() urlstate.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Rows returns the current page sorted by the active sort keys
func (c *Controller[T]) Rows() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortRows(c.rows, c.state.Sort, c.entity)
}

// View returns a render-ready snapshot
func (c *Controller[T]) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	pager := Pager{Page: c.state.Page, PageSize: c.state.PageSize, Total: c.total}
	rows := sortRows(c.rows, c.state.Sort, c.entity)
	if rows == nil {
		rows = []T{}
	}
	counts := c.stageCounts
	if counts == nil {
		counts = domain.StageCounts{}
	}

	return View{
		Entity:        c.entity.Name,
		Query:         c.location.Query(),
		Filters:       c.state.Clone(),
		SearchInput:   c.searchInput,
		ActiveFilters: c.state.ActiveFilterCount(),
		Rows:          rows,
		Total:         c.total,
		Page:          c.state.Page,
		PageSize:      c.state.PageSize,
		TotalPages:    pager.TotalPages(),
		HasNext:       pager.HasNext(),
		HasPrev:       pager.HasPrev(),
		PageSizes:     slices.Clone(c.entity.Schema.PageSizes),
		Stages:        slices.Clone(c.entity.Schema.Stages),
		StageCounts:   counts,
		Loading:       c.page.status == StatusLoading,
		Status:        c.page.status,
		Error:         newFetchError(c.page.err),
		CountsLoading: c.counts.status == StatusLoading,
		CountsError:   newFetchError(c.counts.err),
		Columns:       columnStates(c.entity, c.view.hidden, c.state.Sort),
		Selected:      c.view.selectedIDs(),
		AllSelected:   c.allSelectedLocked(),
	}
}

// SetSearch records raw search input. The location is updated once the input
// has been quiet for the debounce period.
func (c *Controller[T]) SetSearch(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.searchInput = raw
	c.searchPending = true
	// Pushing under the lock keeps searchPending consistent with the debouncer.
	c.search.Push(searchValue{text: raw, epoch: c.searchEpoch})
}

// FlushSearch applies pending search input immediately
func (c *Controller[T]) FlushSearch() {
	c.search.Flush()
}

func (c *Controller[T]) commitSearch(value searchValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchPending = c.search.Pending()
	defer c.signalLocked()
	// Input typed before the last ClearFilters may still arrive once the timer has fired.
	if c.closed || value.epoch != c.searchEpoch || value.text == c.state.Search {
		return
	}
	next := c.state.Clone()
	next.Search = value.text
	next.Page = 1
	c.commitLocked(next)
}

// SetStage switches the stage tab. An empty stage selects all.
func (c *Controller[T]) SetStage(stage string) error {
	if stage != "" && !c.entity.Schema.IsStage(stage) {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	return c.apply(func(s *urlstate.FilterState) {
		if s.Stage != stage {
			s.Stage = stage
			s.Page = 1
		}
	})
}

// SetFilter sets a single-value filter, or replaces a multi-select filter
// with one value. An empty value clears it.
func (c *Controller[T]) SetFilter(key, value string) error {
	schema := c.entity.Schema
	switch {
	case schema.IsSingleKey(key):
		return c.apply(func(s *urlstate.FilterState) {
			if s.Single[key] != value {
				s.SetSingle(key, value)
				s.Page = 1
			}
		})
	case schema.IsMultiKey(key):
		var values []string
		if value != "" {
			values = []string{value}
		}
		return c.SetMultiFilter(key, values)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
}

// SetMultiFilter replaces the values of a multi-select filter
func (c *Controller[T]) SetMultiFilter(key string, values []string) error {
	if !c.entity.Schema.IsMultiKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	return c.apply(func(s *urlstate.FilterState) {
		if !slices.Equal(s.Multi[key], values) {
			s.SetMulti(key, values)
			s.Page = 1
		}
	})
}

// ToggleFilter adds or removes one value of a multi-select filter
func (c *Controller[T]) ToggleFilter(key, value string) error {
	if !c.entity.Schema.IsMultiKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	if value == "" {
		return nil
	}
	return c.apply(func(s *urlstate.FilterState) {
		s.ToggleMulti(key, value)
		s.Page = 1
	})
}

// SetDateRange sets or, with nil, clears the date range
func (c *Controller[T]) SetDateRange(r *urlstate.DateRange) {
	_ = c.apply(func(s *urlstate.FilterState) {
		if r != nil && r.To.Before(r.From) {
			return
		}
		if r == nil && s.DateRange == nil {
			return
		}
		if r != nil {
			dr := *r
			s.DateRange = &dr
		} else {
			s.DateRange = nil
		}
		s.Page = 1
	})
}

// ClearFilters removes every filter, the search and the stage
func (c *Controller[T]) ClearFilters() {
	c.mu.Lock()
	c.searchEpoch++
	c.search.Cancel()
	c.searchInput = ""
	c.searchPending = false
	c.mu.Unlock()

	_ = c.apply(func(s *urlstate.FilterState) {
		sort := s.Sort
		pageSize := s.PageSize
		*s = c.entity.Schema.Default()
		s.Sort = sort
		s.PageSize = pageSize
	})
}

// NextPage moves forward one page unless at the last page
func (c *Controller[T]) NextPage() {
	_ = c.apply(func(s *urlstate.FilterState) {
		s.Page = c.pagerLocked().Next()
	})
}

// PrevPage moves back one page unless at page 1
func (c *Controller[T]) PrevPage() {
	_ = c.apply(func(s *urlstate.FilterState) {
		s.Page = c.pagerLocked().Prev()
	})
}

// JumpToPage moves to page, clamped into the known page range
func (c *Controller[T]) JumpToPage(page int) {
	_ = c.apply(func(s *urlstate.FilterState) {
		s.Page = c.pagerLocked().Jump(page)
	})
}

// SetPageSize changes the page size and returns to page 1
func (c *Controller[T]) SetPageSize(size int) error {
	if !c.entity.Schema.IsPageSize(size) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}
	return c.apply(func(s *urlstate.FilterState) {
		if s.PageSize != size {
			s.PageSize = size
			s.Page = 1
		}
	})
}

// ToggleSort cycles a column through ascending, descending and unsorted.
// Sorting reorders the loaded page only.
func (c *Controller[T]) ToggleSort(column string, multi bool) error {
	col, ok := c.entity.column(column)
	if !ok || !col.Sortable {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	return c.apply(func(s *urlstate.FilterState) {
		s.Sort = cycleSort(s.Sort, column, multi)
	})
}

// SetColumnVisible shows or hides a column
func (c *Controller[T]) SetColumnVisible(column string, visible bool) error {
	if _, ok := c.entity.column(column); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if visible {
		delete(c.view.hidden, column)
	} else {
		c.view.hidden[column] = true
	}
	return nil
}

// Select marks one row on the current page
func (c *Controller[T]) Select(id string, selected bool) error {
	c.mu.Lock()
	if !slices.ContainsFunc(c.rows, func(row T) bool { return c.entity.RowID(row) == id }) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownRow, id)
	}
	changed := c.view.selected[id] != selected
	if selected {
		c.view.selected[id] = true
	} else {
		delete(c.view.selected, id)
	}
	ids := c.view.selectedIDs()
	c.mu.Unlock()

	if changed {
		c.notifySelection(ids)
	}
	return nil
}

// SelectPage selects or clears every row of the current page
func (c *Controller[T]) SelectPage(selected bool) {
	c.mu.Lock()
	before := len(c.view.selected)
	if selected {
		for _, row := range c.rows {
			c.view.selected[c.entity.RowID(row)] = true
		}
	} else {
		clear(c.view.selected)
	}
	changed := before != len(c.view.selected)
	ids := c.view.selectedIDs()
	c.mu.Unlock()

	if changed {
		c.notifySelection(ids)
	}
}

// Selected returns the selected row ids in order
func (c *Controller[T]) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.selectedIDs()
}

// Refresh refetches page data and counts for the current location
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.startPageLocked()
	c.startCountsLocked()
}

// UpdatePriority sets the priority of the selected rows and reloads the table
// on success. A failure leaves the table untouched.
func (c *Controller[T]) UpdatePriority(ctx context.Context, priority string) error {
	ids := c.Selected()
	if len(ids) == 0 {
		return ErrNoSelection
	}
	if err := c.source.UpdatePriority(ctx, ids, priority); err != nil {
		c.logger.Warn("bulk priority update failed",
			zap.Int("rows", len(ids)),
			zap.String("priority", priority),
			zap.Error(err))
		return err
	}
	c.logger.Info("bulk priority updated", zap.Int("rows", len(ids)), zap.String("priority", priority))
	c.Refresh()
	return nil
}

// UpdateStatus sets the status of one row and reloads the table on success
func (c *Controller[T]) UpdateStatus(ctx context.Context, id, status string) error {
	if err := c.source.UpdateStatus(ctx, id, status); err != nil {
		c.logger.Warn("status update failed",
			zap.String("row_id", id),
			zap.String("status", status),
			zap.Error(err))
		return err
	}
	c.Refresh()
	return nil
}

// Settle blocks until no search input is pending and no fetch is in flight
func (c *Controller[T]) Settle(ctx context.Context) error {
	c.mu.Lock()
	if !c.busyLocked() {
		c.mu.Unlock()
		return nil
	}
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels pending search input and in-flight fetches. Responses that
// arrive afterwards are discarded.
func (c *Controller[T]) Close() {
	c.search.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.searchPending = false
	c.page.stop()
	c.counts.stop()
	c.signalLocked()
}

// apply runs mutate on a copy of the state and commits the result
func (c *Controller[T]) apply(mutate func(next *urlstate.FilterState)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	next := c.state.Clone()
	mutate(&next)
	c.commitLocked(next)
	return nil
}

// commitLocked writes next into the location, re-reads the state from it and
// starts the fetches whose parameters changed
func (c *Controller[T]) commitLocked(next urlstate.FilterState) {
	current, _ := url.ParseQuery(c.location.Query())
	merged := urlstate.Merge(c.entity.Schema.Patch(next), current)
	if encoded := merged.Encode(); encoded != c.location.Query() {
		c.location.Replace(encoded)
	}

	prev := c.state
	c.state = c.entity.Schema.ParseValues(merged)

	q := c.entity.Query
	if q.Page(prev).Encode() != q.Page(c.state).Encode() {
		c.startPageLocked()
	}
	if q.Counts(prev).Encode() != q.Counts(c.state).Encode() {
		c.startCountsLocked()
	}
}

func (c *Controller[T]) startPageLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	gen := c.page.begin(cancel)
	params := c.entity.Query.Page(c.state)
	c.inflight++

	go func() {
		defer cancel()
		page, err := c.source.FetchPage(ctx, params)
		c.finishPage(ctx, gen, page, err)
	}()
}

func (c *Controller[T]) startCountsLocked() {
	if c.entity.Endpoints.Counts == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	gen := c.counts.begin(cancel)
	params := c.entity.Query.Counts(c.state)
	c.inflight++

	go func() {
		defer cancel()
		counts, err := c.source.FetchCounts(ctx, params)
		c.finishCounts(ctx, gen, counts, err)
	}()
}

func (c *Controller[T]) finishPage(ctx context.Context, gen uint64, page domain.ServerPage[T], err error) {
	c.mu.Lock()
	ids, notify := c.applyPageLocked(ctx, gen, page, err)
	c.inflight--
	c.signalLocked()
	c.mu.Unlock()

	if notify {
		c.notifySelection(ids)
	}
}

func (c *Controller[T]) applyPageLocked(ctx context.Context, gen uint64, page domain.ServerPage[T], err error) ([]string, bool) {
	if c.closed || gen != c.page.generation {
		c.logger.Debug("discarding stale page response", zap.Uint64("generation", gen))
		return nil, false
	}
	c.page.cancel = nil

	if err != nil {
		err = timeoutAware(ctx, err)
		c.page.status = StatusError
		c.page.err = err
		c.logger.Warn("page fetch failed",
			zap.String("kind", backend.Kind(err)),
			zap.Int("page", c.state.Page),
			zap.Error(err))
		return nil, false
	}

	c.page.status = StatusSuccess
	c.page.err = nil
	c.rows = page.Data
	c.total = page.Total

	onPage := make(map[string]bool, len(c.rows))
	for _, row := range c.rows {
		onPage[c.entity.RowID(row)] = true
	}
	purged := c.view.purge(onPage)

	if clamped := c.pagerLocked().Clamp(); clamped != c.state.Page {
		c.logger.Debug("page out of range, clamping",
			zap.Int("page", c.state.Page),
			zap.Int("clamped", clamped),
			zap.Int64("total", c.total))
		next := c.state.Clone()
		next.Page = clamped
		c.commitLocked(next)
	}

	if purged {
		return c.view.selectedIDs(), true
	}
	return nil, false
}

func (c *Controller[T]) finishCounts(ctx context.Context, gen uint64, counts domain.StageCounts, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.signalLocked()
	c.inflight--

	if c.closed || gen != c.counts.generation {
		c.logger.Debug("discarding stale counts response", zap.Uint64("generation", gen))
		return
	}
	c.counts.cancel = nil

	if err != nil {
		err = timeoutAware(ctx, err)
		c.counts.status = StatusError
		c.counts.err = err
		c.logger.Warn("stage counts fetch failed", zap.String("kind", backend.Kind(err)), zap.Error(err))
		return
	}
	c.counts.status = StatusSuccess
	c.counts.err = nil
	c.stageCounts = counts
}

func (c *Controller[T]) pagerLocked() Pager {
	return Pager{Page: c.state.Page, PageSize: c.state.PageSize, Total: c.total}
}

func (c *Controller[T]) allSelectedLocked() bool {
	if len(c.rows) == 0 {
		return false
	}
	for _, row := range c.rows {
		if !c.view.selected[c.entity.RowID(row)] {
			return false
		}
	}
	return true
}

func (c *Controller[T]) busyLocked() bool {
	return c.inflight > 0 || c.searchPending
}

func (c *Controller[T]) signalLocked() {
	if c.idle != nil && !c.busyLocked() {
		close(c.idle)
		c.idle = nil
	}
}

func (c *Controller[T]) notifySelection(ids []string) {
	if c.onSelect != nil {
		c.onSelect(ids)
	}
}

// timeoutAware reports a request that ran out of its deadline as a timeout
// regardless of how the source surfaced it
func timeoutAware(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, backend.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", backend.ErrTimeout, err)
	}
	return err
}
