// Package query derives the backend request parameters of a table from its filter state.
package query

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/straye-as/salesdesk/internal/urlstate"
)

// MonthCodes maps closing-month labels to the month numbers the backend expects
var MonthCodes = map[string]string{
	"January":   "1",
	"February":  "2",
	"March":     "3",
	"April":     "4",
	"May":       "5",
	"June":      "6",
	"July":      "7",
	"August":    "8",
	"September": "9",
	"October":   "10",
	"November":  "11",
	"December":  "12",
}

// MultiParam maps a multi-select URL key to its backend parameter
type MultiParam struct {
	Param string
	// Codes translates display labels to backend codes. Nil passes values through.
	Codes map[string]string
}

// Spec names the backend parameters of one list endpoint
type Spec struct {
	StageParam    string
	PageParam     string
	PageSizeParam string
	SearchParam   string
	FromParam     string
	ToParam       string
	// Multi is keyed by URL key
	Multi map[string]MultiParam
	// Single maps URL keys to backend parameter names
	Single map[string]string
}

// Page returns the parameters of the page-data request
func (s *Spec) Page(state urlstate.FilterState) url.Values {
	params := s.filters(state)
	set(params, s.StageParam, state.Stage)
	set(params, s.PageParam, strconv.Itoa(max(state.Page, 1)))
	if state.PageSize > 0 {
		set(params, s.PageSizeParam, strconv.Itoa(state.PageSize))
	}
	return params
}

// Counts returns the parameters of the per-stage counts request: every
// filter of the page request except the stage itself and paging.
func (s *Spec) Counts(state urlstate.FilterState) url.Values {
	return s.filters(state)
}

func (s *Spec) filters(state urlstate.FilterState) url.Values {
	params := url.Values{}
	set(params, s.SearchParam, strings.TrimSpace(state.Search))

	for _, key := range sortedKeys(state.Multi) {
		mp, ok := s.Multi[key]
		if !ok {
			continue
		}
		codes := translate(state.Multi[key], mp.Codes)
		set(params, mp.Param, strings.Join(codes, ","))
	}

	for _, key := range sortedKeys(state.Single) {
		if param, ok := s.Single[key]; ok {
			set(params, param, state.Single[key])
		}
	}

	if state.DateRange != nil {
		set(params, s.FromParam, state.DateRange.From.Format(urlstate.DateLayout))
		set(params, s.ToParam, state.DateRange.To.Format(urlstate.DateLayout))
	}
	return params
}

// translate maps labels to codes. Values that already are codes pass through;
// values with no mapping are dropped.
func translate(values []string, codes map[string]string) []string {
	if codes == nil {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		code, ok := lookup(codes, v)
		if !ok || slices.Contains(out, code) {
			continue
		}
		out = append(out, code)
	}
	return out
}

func lookup(codes map[string]string, v string) (string, bool) {
	if code, ok := codes[v]; ok {
		return code, true
	}
	for label, code := range codes {
		if strings.EqualFold(label, v) || code == v {
			return code, true
		}
	}
	return "", false
}

func set(params url.Values, key, value string) {
	if key == "" || value == "" {
		return
	}
	params.Set(key, value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
