package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

func TestCycleSort(t *testing.T) {
	asc := func(f string) urlstate.SortKey { return urlstate.SortKey{Field: f, Direction: urlstate.SortAsc} }
	desc := func(f string) urlstate.SortKey { return urlstate.SortKey{Field: f, Direction: urlstate.SortDesc} }

	tests := []struct {
		name  string
		keys  []urlstate.SortKey
		field string
		multi bool
		want  []urlstate.SortKey
	}{
		{name: "none to asc", field: "name", want: []urlstate.SortKey{asc("name")}},
		{name: "asc to desc", keys: []urlstate.SortKey{asc("name")}, field: "name", want: []urlstate.SortKey{desc("name")}},
		{name: "desc to none", keys: []urlstate.SortKey{desc("name")}, field: "name", want: []urlstate.SortKey{}},
		{name: "single replaces others", keys: []urlstate.SortKey{asc("value"), asc("name")}, field: "name", want: []urlstate.SortKey{desc("name")}},
		{name: "single starts fresh", keys: []urlstate.SortKey{asc("value")}, field: "name", want: []urlstate.SortKey{asc("name")}},
		{name: "multi appends", keys: []urlstate.SortKey{asc("value")}, field: "name", multi: true, want: []urlstate.SortKey{asc("value"), asc("name")}},
		{name: "multi flips in place", keys: []urlstate.SortKey{asc("value"), asc("name")}, field: "value", multi: true, want: []urlstate.SortKey{desc("value"), asc("name")}},
		{name: "multi removes", keys: []urlstate.SortKey{desc("value"), asc("name")}, field: "value", multi: true, want: []urlstate.SortKey{asc("name")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cycleSort(tt.keys, tt.field, tt.multi)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("cycleSort mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCycleSort_DoesNotMutateInput(t *testing.T) {
	keys := []urlstate.SortKey{{Field: "value", Direction: urlstate.SortAsc}}
	_ = cycleSort(keys, "value", true)
	assert.Equal(t, urlstate.SortAsc, keys[0].Direction)
}

func TestSortRows_MultiKeyStable(t *testing.T) {
	rows := []domain.Lead{
		{ID: "1", Priority: domain.PriorityLow, Name: "b"},
		{ID: "2", Priority: domain.PriorityHigh, Name: "b"},
		{ID: "3", Priority: domain.PriorityHigh, Name: "a"},
		{ID: "4", Priority: domain.PriorityLow, Name: "b"},
	}
	keys := []urlstate.SortKey{
		{Field: "priority", Direction: urlstate.SortDesc},
		{Field: "name", Direction: urlstate.SortAsc},
		{Field: "unknown", Direction: urlstate.SortAsc},
	}

	got := sortRows(rows, keys, Leads)

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"3", "2", "1", "4"}, ids)
	assert.Equal(t, "1", rows[0].ID, "input must stay in server order")
}

func TestPresentation_Purge(t *testing.T) {
	p := newPresentation()
	p.selected["a"] = true
	p.selected["b"] = true

	assert.False(t, p.purge(map[string]bool{"a": true, "b": true, "c": true}))
	assert.True(t, p.purge(map[string]bool{"b": true}))
	assert.Equal(t, []string{"b"}, p.selectedIDs())
}
