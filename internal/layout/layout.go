package layout

import (
	"fmt"
	"sort"

	"github.com/roach88/sectional/internal/fetch"
	"github.com/roach88/sectional/internal/row"
)

// Section is one named group of ordered rows. A section with zero rows
// never survives a diff cycle; empty sections exist only transiently inside
// a cursor while events are being applied.
type Section struct {
	Name row.SectionKey
	Rows []row.RowIdentity
}

// Layout is the materialized, ordered shape of a fetched result as of one
// snapshot. Section order follows the request's collation (or fetch order
// when ungrouped, where there is exactly one unnamed section).
type Layout struct {
	Sections []Section
}

// InvariantError reports a violated layout invariant, such as a duplicate
// stable key in one snapshot. Invariant violations are not user
// recoverable: the current diff cycle aborts without mutating the cache,
// and reset is the documented recovery path.
type InvariantError struct {
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "layout invariant violated: " + e.Message
}

// IsEmpty reports whether the layout has no sections.
func (l Layout) IsEmpty() bool {
	return len(l.Sections) == 0
}

// Grouped reports whether the layout's rows carry section membership.
// A grouped layout may have a section whose key value is the empty
// string, so the flag comes from the row identities, not the names.
// An empty layout reports false.
func (l Layout) Grouped() bool {
	for _, s := range l.Sections {
		if len(s.Rows) > 0 {
			return s.Rows[0].HasSection
		}
	}
	return false
}

// RowCount returns the total number of rows across all sections.
func (l Layout) RowCount() int {
	n := 0
	for _, s := range l.Sections {
		n += len(s.Rows)
	}
	return n
}

// Clone returns a deep copy. Mutating the copy never affects the
// original.
func (l Layout) Clone() Layout {
	out := Layout{Sections: make([]Section, len(l.Sections))}
	for i, s := range l.Sections {
		rows := make([]row.RowIdentity, len(s.Rows))
		copy(rows, s.Rows)
		out.Sections[i] = Section{Name: s.Name, Rows: rows}
	}
	return out
}

// Equal reports whether two layouts have the same sections in the same
// order with the same row identities in the same order. Only identity and
// order are compared; sort values and digests are ignored, matching what
// the cache persists.
func (l Layout) Equal(o Layout) bool {
	if len(l.Sections) != len(o.Sections) {
		return false
	}
	for i, s := range l.Sections {
		t := o.Sections[i]
		if s.Name != t.Name || len(s.Rows) != len(t.Rows) {
			return false
		}
		for j := range s.Rows {
			if s.Rows[j].ID != t.Rows[j].ID {
				return false
			}
		}
	}
	return true
}

// Group partitions an ordered snapshot into a layout per the request.
//
// Rows keep their snapshot order within each section (the grouping is
// stable); sections are ordered by the request's collator. Without a
// section key path the whole snapshot becomes one implicit unnamed
// section. A duplicate stable key or an identity whose grouping disagrees
// with the request is an InvariantError.
func Group(objects []fetch.Object, req fetch.Request) (Layout, error) {
	seen := make(map[row.StableKey]bool, len(objects))

	if !req.Grouped() {
		if len(objects) == 0 {
			return Layout{}, nil
		}
		rows := make([]row.RowIdentity, 0, len(objects))
		for _, obj := range objects {
			id := obj.Identity()
			if seen[id.ID] {
				return Layout{}, &InvariantError{Message: fmt.Sprintf("duplicate stable key %q in snapshot", id.ID)}
			}
			seen[id.ID] = true
			rows = append(rows, id)
		}
		return Layout{Sections: []Section{{Rows: rows}}}, nil
	}

	byName := make(map[row.SectionKey][]row.RowIdentity)
	names := make([]row.SectionKey, 0)
	for _, obj := range objects {
		id := obj.Identity()
		if seen[id.ID] {
			return Layout{}, &InvariantError{Message: fmt.Sprintf("duplicate stable key %q in snapshot", id.ID)}
		}
		seen[id.ID] = true
		if !id.HasSection {
			return Layout{}, &InvariantError{Message: fmt.Sprintf("row %q has no section key under a grouped request", id.ID)}
		}
		if _, ok := byName[id.Section]; !ok {
			names = append(names, id.Section)
		}
		byName[id.Section] = append(byName[id.Section], id)
	}

	coll := req.Collator()
	sort.SliceStable(names, func(i, j int) bool {
		return coll.CompareString(string(names[i]), string(names[j])) < 0
	})

	out := Layout{Sections: make([]Section, len(names))}
	for i, name := range names {
		out.Sections[i] = Section{Name: name, Rows: byName[name]}
	}
	return out, nil
}
