package urlstate

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Query keys shared by every table
const (
	KeyPage     = "page"
	KeyPageSize = "pageSize"
	KeySearch   = "search"
	KeySort     = "sort"
	KeyFromDate = "fromDate"
	KeyToDate   = "toDate"
)

// DateLayout is the yyyy-MM-dd layout used for date parameters
const DateLayout = "2006-01-02"

// DefaultPageSizes is the page-size set offered by every table
var DefaultPageSizes = []int{1, 5, 10, 20, 50, 100}

// Schema describes the query-string surface of one table
type Schema struct {
	// StageKey is the tab key, "stage" or "status"
	StageKey string
	// Stages lists the allowed tab values; an unknown value parses as "" (all)
	Stages          []string
	DefaultPageSize int
	PageSizes       []int
	// MultiKeys are comma-joined multi-select filters, e.g. State, ClosingMonth
	MultiKeys []string
	// SingleKeys are single-value filters, e.g. priority, handover, name
	SingleKeys []string
}

// Patch is a partial query update. An empty value deletes its key.
type Patch map[string]string

// Set sets a raw value
func (p Patch) Set(key, value string) Patch {
	p[key] = value
	return p
}

// SetInt sets a positive integer; zero or negative deletes the key
func (p Patch) SetInt(key string, n int) Patch {
	if n <= 0 {
		p[key] = ""
		return p
	}
	p[key] = strconv.Itoa(n)
	return p
}

// SetList sets a comma-joined list; an empty list deletes the key
func (p Patch) SetList(key string, values []string) Patch {
	p[key] = strings.Join(values, ",")
	return p
}

// SetDate sets a yyyy-MM-dd date; nil deletes the key
func (p Patch) SetDate(key string, t *time.Time) Patch {
	if t == nil {
		p[key] = ""
		return p
	}
	p[key] = t.Format(DateLayout)
	return p
}

// IsStage reports whether stage is a known tab value. The empty stage is always valid.
func (s *Schema) IsStage(stage string) bool {
	return stage == "" || slices.Contains(s.Stages, stage)
}

// IsPageSize reports whether n is an allowed page size
func (s *Schema) IsPageSize(n int) bool {
	return slices.Contains(s.pageSizes(), n)
}

// IsMultiKey reports whether key is a multi-select filter
func (s *Schema) IsMultiKey(key string) bool {
	return slices.Contains(s.MultiKeys, key)
}

// IsSingleKey reports whether key is a single-value filter
func (s *Schema) IsSingleKey(key string) bool {
	return slices.Contains(s.SingleKeys, key)
}

func (s *Schema) pageSizes() []int {
	if len(s.PageSizes) == 0 {
		return DefaultPageSizes
	}
	return s.PageSizes
}

// Default returns the state of a location without query parameters
func (s *Schema) Default() FilterState {
	return FilterState{Page: 1, PageSize: s.DefaultPageSize}
}

// Parse reads a raw query string. Malformed pairs are skipped.
func (s *Schema) Parse(rawQuery string) FilterState {
	values, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	return s.ParseValues(values)
}

// ParseValues reads known keys from values; unknown keys are ignored
func (s *Schema) ParseValues(values url.Values) FilterState {
	state := s.Default()

	if stage := values.Get(s.StageKey); s.IsStage(stage) {
		state.Stage = stage
	}
	if page, err := strconv.Atoi(values.Get(KeyPage)); err == nil && page > 0 {
		state.Page = page
	}
	if size, err := strconv.Atoi(values.Get(KeyPageSize)); err == nil && s.IsPageSize(size) {
		state.PageSize = size
	}
	state.Search = values.Get(KeySearch)
	state.Sort = parseSort(values.Get(KeySort))

	for _, key := range s.MultiKeys {
		state.SetMulti(key, splitList(values.Get(key)))
	}
	for _, key := range s.SingleKeys {
		state.SetSingle(key, strings.TrimSpace(values.Get(key)))
	}

	from, errFrom := time.Parse(DateLayout, values.Get(KeyFromDate))
	to, errTo := time.Parse(DateLayout, values.Get(KeyToDate))
	if errFrom == nil && errTo == nil && !to.Before(from) {
		state.DateRange = &DateRange{From: from, To: to}
	}

	return state
}

// Patch returns a patch covering every key the schema owns. Default values
// produce empty entries so that merging removes them from the location.
func (s *Schema) Patch(state FilterState) Patch {
	p := Patch{}
	p.Set(s.StageKey, state.Stage)
	if state.Page > 1 {
		p.SetInt(KeyPage, state.Page)
	} else {
		p.Set(KeyPage, "")
	}
	if state.PageSize != s.DefaultPageSize {
		p.SetInt(KeyPageSize, state.PageSize)
	} else {
		p.Set(KeyPageSize, "")
	}
	p.Set(KeySearch, state.Search)
	p.Set(KeySort, formatSort(state.Sort))
	for _, key := range s.MultiKeys {
		p.SetList(key, state.Multi[key])
	}
	for _, key := range s.SingleKeys {
		p.Set(key, state.Single[key])
	}
	if state.DateRange != nil {
		p.SetDate(KeyFromDate, &state.DateRange.From)
		p.SetDate(KeyToDate, &state.DateRange.To)
	} else {
		p.SetDate(KeyFromDate, nil)
		p.SetDate(KeyToDate, nil)
	}
	return p
}

// Encode serializes a full state
func (s *Schema) Encode(state FilterState) url.Values {
	return Merge(s.Patch(state), nil)
}

// Canonicalize rewrites the schema's keys in values to their normalized form
// and leaves foreign keys untouched
func (s *Schema) Canonicalize(values url.Values) url.Values {
	return Merge(s.Patch(s.ParseValues(values)), values)
}

// Merge applies a partial update to the current parameters and returns the
// result. Keys with empty values are deleted; current is not modified.
func Merge(p Patch, current url.Values) url.Values {
	out := make(url.Values, len(current)+len(p))
	for k, v := range current {
		out[k] = slices.Clone(v)
	}
	for k, v := range p {
		if v == "" {
			out.Del(k)
			continue
		}
		out.Set(k, v)
	}
	return out
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || slices.Contains(out, part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseSort(raw string) []SortKey {
	var keys []SortKey
	for _, part := range splitList(raw) {
		field, dir, _ := strings.Cut(part, ":")
		if field == "" || slices.ContainsFunc(keys, func(k SortKey) bool { return k.Field == field }) {
			continue
		}
		direction := SortAsc
		if SortDirection(dir) == SortDesc {
			direction = SortDesc
		}
		keys = append(keys, SortKey{Field: field, Direction: direction})
	}
	return keys
}

func formatSort(keys []SortKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Field+":"+string(k.Direction))
	}
	return strings.Join(parts, ",")
}
