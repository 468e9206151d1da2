package urlstate_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/straye-as/salesdesk/internal/urlstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leadSchema() *urlstate.Schema {
	return &urlstate.Schema{
		StageKey:        "stage",
		Stages:          []string{"initial", "follow up", "warm", "won", "dead"},
		DefaultPageSize: 10,
		MultiKeys:       []string{"State", "ClosingMonth"},
		SingleKeys:      []string{"priority", "handover", "name"},
	}
}

func date(s string) time.Time {
	t, err := time.Parse(urlstate.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParse_Defaults(t *testing.T) {
	s := leadSchema()

	state := s.Parse("")

	assert.Equal(t, 1, state.Page)
	assert.Equal(t, 10, state.PageSize)
	assert.Empty(t, state.Stage)
	assert.Empty(t, state.Search)
	assert.Nil(t, state.Multi)
	assert.Nil(t, state.Single)
	assert.Nil(t, state.DateRange)
}

func TestParse_MalformedValuesFallBack(t *testing.T) {
	s := leadSchema()

	tests := []struct {
		name     string
		query    string
		page     int
		pageSize int
		stage    string
	}{
		{"non numeric page", "page=abc", 1, 10, ""},
		{"zero page", "page=0", 1, 10, ""},
		{"negative page", "page=-4", 1, 10, ""},
		{"page size not allowed", "pageSize=7", 1, 10, ""},
		{"page size garbage", "pageSize=ten", 1, 10, ""},
		{"unknown stage", "stage=lost", 1, 10, ""},
		{"valid values", "page=3&pageSize=50&stage=warm", 3, 50, "warm"},
		{"leading question mark", "?page=2", 2, 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := s.Parse(tt.query)
			assert.Equal(t, tt.page, state.Page)
			assert.Equal(t, tt.pageSize, state.PageSize)
			assert.Equal(t, tt.stage, state.Stage)
		})
	}
}

func TestParse_IgnoresUnknownKeys(t *testing.T) {
	s := leadSchema()

	state := s.Parse("utm_source=mail&foo=bar&priority=high")

	assert.Equal(t, map[string]string{"priority": "high"}, state.Single)
}

func TestParse_MultiSelectNormalization(t *testing.T) {
	s := leadSchema()

	state := s.Parse("State=Odisha,%20Bihar,,Odisha&ClosingMonth=")

	assert.Equal(t, []string{"Odisha", "Bihar"}, state.Multi["State"])
	_, present := state.Multi["ClosingMonth"]
	assert.False(t, present, "empty multi-select must be absent")
}

func TestParse_DateRange(t *testing.T) {
	s := leadSchema()

	state := s.Parse("fromDate=2024-01-01&toDate=2024-01-31")
	require.NotNil(t, state.DateRange)
	assert.Equal(t, date("2024-01-01"), state.DateRange.From)
	assert.Equal(t, date("2024-01-31"), state.DateRange.To)

	assert.Nil(t, s.Parse("fromDate=2024-01-01").DateRange, "half-open ranges are dropped")
	assert.Nil(t, s.Parse("fromDate=2024-02-01&toDate=2024-01-01").DateRange, "inverted ranges are dropped")
	assert.Nil(t, s.Parse("fromDate=01/02/2024&toDate=2024-01-01").DateRange)
}

func TestParse_Sort(t *testing.T) {
	s := leadSchema()

	state := s.Parse("sort=name:asc,createdAt:desc,name:desc,value:sideways")

	assert.Equal(t, []urlstate.SortKey{
		{Field: "name", Direction: urlstate.SortAsc},
		{Field: "createdAt", Direction: urlstate.SortDesc},
		{Field: "value", Direction: urlstate.SortAsc},
	}, state.Sort)
}

func TestRoundTrip(t *testing.T) {
	s := leadSchema()

	states := []urlstate.FilterState{
		s.Default(),
		{Stage: "follow up", Page: 1, PageSize: 10, Search: "acme"},
		{Page: 4, PageSize: 50, Search: "a&b=c ,x"},
		{
			Stage:    "won",
			Page:     2,
			PageSize: 100,
			Sort:     []urlstate.SortKey{{Field: "value", Direction: urlstate.SortDesc}},
			Multi: map[string][]string{
				"State":        {"Odisha", "Bihar"},
				"ClosingMonth": {"January"},
			},
			Single:    map[string]string{"priority": "high", "name": "42"},
			DateRange: &urlstate.DateRange{From: date("2024-03-01"), To: date("2024-03-31")},
		},
	}

	for _, want := range states {
		encoded := s.Encode(want).Encode()
		got := s.Parse(encoded)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("round trip of %q mismatch (-want +got):\n%s", encoded, diff)
		}
	}
}

func TestEncode_OmitsDefaults(t *testing.T) {
	s := leadSchema()

	assert.Empty(t, s.Encode(s.Default()).Encode())
	assert.Equal(t, "page=2", s.Encode(urlstate.FilterState{Page: 2, PageSize: 10}).Encode())
}

func TestMerge(t *testing.T) {
	current := url.Values{"search": {"acme"}, "page": {"3"}, "utm": {"x"}}

	merged := urlstate.Merge(urlstate.Patch{}.Set("search", "").SetInt("page", 1).SetList("State", []string{"Odisha", "Bihar"}), current)

	assert.Equal(t, url.Values{"page": {"1"}, "utm": {"x"}, "State": {"Odisha,Bihar"}}, merged)
	assert.Equal(t, "acme", current.Get("search"), "merge must not modify its input")
}

func TestMerge_StateFilterTransitions(t *testing.T) {
	s := leadSchema()
	values := url.Values{}
	state := s.ParseValues(values)

	var seen []string
	record := func() {
		seen = append(seen, values.Get("State"))
	}

	record()
	for _, v := range []string{"Odisha", "Bihar", "Odisha"} {
		state.ToggleMulti("State", v)
		values = s.Canonicalize(urlstate.Merge(s.Patch(state), values))
		state = s.ParseValues(values)
		record()
	}

	assert.Equal(t, []string{"", "Odisha", "Odisha,Bihar", "Bihar"}, seen)
	_, present := values["State"]
	assert.True(t, present)

	state.ToggleMulti("State", "Bihar")
	values = urlstate.Merge(s.Patch(state), values)
	_, present = values["State"]
	assert.False(t, present, "an emptied multi-select is removed from the URL")
}

func TestCanonicalize_KeepsForeignKeys(t *testing.T) {
	s := leadSchema()

	values, err := url.ParseQuery("page=abc&pageSize=10&ref=mail&State=,Bihar")
	require.NoError(t, err)

	got := s.Canonicalize(values)

	assert.Equal(t, url.Values{"ref": {"mail"}, "State": {"Bihar"}}, got)
}

func TestMemoryLocation_ReplaceDoesNotStack(t *testing.T) {
	loc := urlstate.NewMemoryLocation("?page=2")
	assert.Equal(t, "page=2", loc.Query())

	loc.Replace("page=3")
	loc.Replace("?page=4")

	assert.Equal(t, "page=4", loc.Query())
	assert.Equal(t, 2, loc.Replacements())
}
