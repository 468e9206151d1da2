// Package urlstate translates table view state to and from URL query strings.
//
// The query string is the only persisted table-view state: reloading a location
// with the same query reproduces the same view. Parsing never fails; malformed
// or unknown values fall back to documented defaults.
package urlstate

import (
	"maps"
	"slices"
	"time"
)

// SortDirection is the direction of a sort key
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortKey orders rows by a single column
type SortKey struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DateRange is an inclusive calendar-day range
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// FilterState is the structured form of a table location
type FilterState struct {
	Stage     string              `json:"stage"`
	Page      int                 `json:"page"`
	PageSize  int                 `json:"pageSize"`
	Search    string              `json:"search"`
	Sort      []SortKey           `json:"sort,omitempty"`
	Multi     map[string][]string `json:"multiSelectFilters,omitempty"`
	Single    map[string]string   `json:"singleValueFilters,omitempty"`
	DateRange *DateRange          `json:"dateRange,omitempty"`
}

// Clone returns a deep copy of the state
func (s FilterState) Clone() FilterState {
	out := s
	out.Sort = slices.Clone(s.Sort)
	if s.Multi != nil {
		out.Multi = make(map[string][]string, len(s.Multi))
		for k, v := range s.Multi {
			out.Multi[k] = slices.Clone(v)
		}
	}
	out.Single = maps.Clone(s.Single)
	if s.DateRange != nil {
		dr := *s.DateRange
		out.DateRange = &dr
	}
	return out
}

// SetMulti replaces the values of a multi-select filter. An empty list removes it.
func (s *FilterState) SetMulti(key string, values []string) {
	if len(values) == 0 {
		delete(s.Multi, key)
		return
	}
	if s.Multi == nil {
		s.Multi = make(map[string][]string)
	}
	s.Multi[key] = slices.Clone(values)
}

// ToggleMulti adds value to a multi-select filter, or removes it when already present
func (s *FilterState) ToggleMulti(key, value string) {
	current := s.Multi[key]
	if i := slices.Index(current, value); i >= 0 {
		s.SetMulti(key, slices.Delete(slices.Clone(current), i, i+1))
		return
	}
	s.SetMulti(key, append(slices.Clone(current), value))
}

// SetSingle sets a single-value filter. An empty value removes it.
func (s *FilterState) SetSingle(key, value string) {
	if value == "" {
		delete(s.Single, key)
		return
	}
	if s.Single == nil {
		s.Single = make(map[string]string)
	}
	s.Single[key] = value
}

// ActiveFilterCount reports how many filters (excluding stage, search and paging) are set
func (s FilterState) ActiveFilterCount() int {
	n := len(s.Multi) + len(s.Single)
	if s.DateRange != nil {
		n++
	}
	return n
}
