package table

import (
	"maps"
	"slices"

	"github.com/straye-as/salesdesk/internal/urlstate"
)

// ColumnState is how a column renders in a view
type ColumnState struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Visible  bool   `json:"visible"`
	Sortable bool   `json:"sortable"`
	// Sort is "asc", "desc" or empty
	Sort string `json:"sort,omitempty"`
}

// presentation holds view-only state that never reaches the backend
type presentation struct {
	hidden   map[string]bool
	selected map[string]bool
}

func newPresentation() presentation {
	return presentation{hidden: map[string]bool{}, selected: map[string]bool{}}
}

// cycleSort advances field through none -> asc -> desc -> none. Without multi
// the other sort keys are dropped.
func cycleSort(keys []urlstate.SortKey, field string, multi bool) []urlstate.SortKey {
	i := slices.IndexFunc(keys, func(k urlstate.SortKey) bool { return k.Field == field })

	var out []urlstate.SortKey
	if multi {
		out = slices.Clone(keys)
	} else if i >= 0 {
		out = []urlstate.SortKey{keys[i]}
		i = 0
	}

	switch {
	case i < 0:
		return append(out, urlstate.SortKey{Field: field, Direction: urlstate.SortAsc})
	case out[i].Direction == urlstate.SortAsc:
		out[i].Direction = urlstate.SortDesc
		return out
	default:
		return slices.Delete(out, i, i+1)
	}
}

// sortRows returns a stably sorted copy of rows. Keys naming unknown or
// unsortable columns are ignored.
func sortRows[T any](rows []T, keys []urlstate.SortKey, e *Entity[T]) []T {
	out := slices.Clone(rows)
	type cmp struct {
		compare func(a, b T) int
		desc    bool
	}
	var cmps []cmp
	for _, k := range keys {
		col, ok := e.column(k.Field)
		if !ok || !col.Sortable || col.Compare == nil {
			continue
		}
		cmps = append(cmps, cmp{compare: col.Compare, desc: k.Direction == urlstate.SortDesc})
	}
	if len(cmps) == 0 {
		return out
	}
	slices.SortStableFunc(out, func(a, b T) int {
		for _, c := range cmps {
			r := c.compare(a, b)
			if c.desc {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
		return 0
	})
	return out
}

// purge drops selected ids that are not on the page. It reports whether anything changed.
func (p *presentation) purge(onPage map[string]bool) bool {
	changed := false
	for id := range p.selected {
		if !onPage[id] {
			delete(p.selected, id)
			changed = true
		}
	}
	return changed
}

func (p *presentation) selectedIDs() []string {
	ids := slices.Sorted(maps.Keys(p.selected))
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func columnStates[T any](e *Entity[T], hidden map[string]bool, keys []urlstate.SortKey) []ColumnState {
	dirs := make(map[string]string, len(keys))
	for _, k := range keys {
		dirs[k.Field] = string(k.Direction)
	}
	out := make([]ColumnState, 0, len(e.Columns))
	for _, c := range e.Columns {
		out = append(out, ColumnState{
			Key:      c.Key,
			Label:    c.Label,
			Visible:  !hidden[c.Key],
			Sortable: c.Sortable,
			Sort:     dirs[c.Key],
		})
	}
	return out
}
