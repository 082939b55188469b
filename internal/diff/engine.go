package diff

import (
	"fmt"
	"sort"

	"github.com/roach88/sectional/internal/layout"
	"github.com/roach88/sectional/internal/row"
)

// Result is one computed diff: the events to deliver, in delivery order,
// and the layout that becomes the new cache baseline once they are
// delivered.
type Result struct {
	Events []ChangeEvent
	Layout layout.Layout
}

// Compute diffs the previous layout against a freshly grouped snapshot.
//
// On any invariant violation (duplicate stable keys, a section key
// appearing twice) no partial result is returned; the caller leaves the
// cache untouched and the previous consistent layout stays in place.
func Compute(old, next layout.Layout) (Result, error) {
	if err := validate(next); err != nil {
		return Result{}, err
	}
	if err := validate(old); err != nil {
		return Result{}, err
	}

	cursor := layout.NewCursor(old)
	var events []ChangeEvent

	oldSections := sectionIndex(old)
	newSections := sectionIndex(next)

	// Pass 1: sections. Deletes in descending old index order so later
	// deletes never invalidate earlier indices, then inserts in ascending
	// new index order.
	for si := len(old.Sections) - 1; si >= 0; si-- {
		name := old.Sections[si].Name
		if _, survives := newSections[name]; !survives {
			events = append(events, SectionDelete{Name: name, Index: si})
			if err := cursor.DeleteSection(si); err != nil {
				return Result{}, err
			}
		}
	}
	for si, s := range next.Sections {
		if _, existed := oldSections[s.Name]; !existed {
			events = append(events, SectionInsert{Name: s.Name, Index: si})
			if err := cursor.InsertSection(si, s.Name); err != nil {
				return Result{}, err
			}
		}
	}

	oldRows := rowIndex(old)
	newRows := rowIndex(next)

	// Pass 2a: row deletes. A row counts as deleted when its key is gone
	// from the new result and its old section survived (rows of deleted
	// sections went down with their SectionDelete). Descending path order.
	var doomed []row.IndexPath
	for id := range oldRows {
		if _, alive := newRows[id]; alive {
			continue
		}
		if p, inCursor := cursor.PathOf(id); inCursor {
			doomed = append(doomed, p)
		}
	}
	sort.Slice(doomed, func(i, j int) bool {
		if doomed[i].Section != doomed[j].Section {
			return doomed[i].Section > doomed[j].Section
		}
		return doomed[i].Row > doomed[j].Row
	})
	for _, p := range doomed {
		ident, err := cursor.RowAt(p)
		if err != nil {
			return Result{}, err
		}
		events = append(events, RowDelete{Row: ident, Path: p})
		if err := cursor.DeleteRow(p); err != nil {
			return Result{}, err
		}
	}

	// Pass 2b: moves and inserts, walking the new layout in ascending
	// final-position order. Rows whose sort values did not change keep
	// their relative order (the grouping pass is stable), so skipping them
	// here leaves them exactly where the surrounding moves and inserts put
	// them.
	var updates []ChangeEvent
	for si, s := range next.Sections {
		for ri, ident := range s.Rows {
			target := row.IndexPath{Section: si, Row: ri}
			oldIdent, existed := oldRows[ident.ID]
			current, inCursor := cursor.PathOf(ident.ID)

			if !existed || !inCursor {
				// Brand new, or its old section was deleted out from under
				// it. Either way it appears here for the first time.
				events = append(events, RowInsert{Row: ident, Path: target})
				if err := cursor.InsertRow(target, ident); err != nil {
					return Result{}, err
				}
				continue
			}

			if rowMoved(oldIdent, ident, current, target) {
				events = append(events, RowMove{Row: ident, From: current, To: target})
				if err := cursor.MoveRow(current, target, ident); err != nil {
					return Result{}, err
				}
				continue
			}

			// Position unchanged. A changed tracked attribute becomes an
			// update at the (final) unchanged path; nothing tracked changed
			// means no event at all.
			if row.NeedsUpdate(oldIdent, ident) {
				updates = append(updates, RowUpdate{Row: ident, Path: target})
			}
			if err := cursor.UpdateRow(current, ident); err != nil {
				return Result{}, err
			}
		}
	}
	events = append(events, updates...)

	// The cursor must have converged on the new layout; anything else is a
	// bug in the join and the cycle aborts undelivered.
	if !cursor.Snapshot().Equal(next) {
		return Result{}, &layout.InvariantError{Message: "diff did not converge on the new layout"}
	}

	return Result{Events: events, Layout: next}, nil
}

// rowMoved decides move-vs-stay for a row present in both layouts.
//
// Live identities carry sort values, and the upstream heuristic is
// literal: differing sort values (or changed section membership) mean a
// move, even when from and to coincide. Identities restored from a
// persisted layout carry no sort values, so for them a move is whatever
// the positions say.
func rowMoved(old, next row.RowIdentity, current, target row.IndexPath) bool {
	if !row.SameSection(old, next) {
		return true
	}
	if len(old.SortValues) == 0 {
		return current != target
	}
	return row.SortChanged(old, next)
}

func sectionIndex(l layout.Layout) map[row.SectionKey]int {
	idx := make(map[row.SectionKey]int, len(l.Sections))
	for i, s := range l.Sections {
		idx[s.Name] = i
	}
	return idx
}

func rowIndex(l layout.Layout) map[row.StableKey]row.RowIdentity {
	idx := make(map[row.StableKey]row.RowIdentity, l.RowCount())
	for _, s := range l.Sections {
		for _, r := range s.Rows {
			idx[r.ID] = r
		}
	}
	return idx
}

// validate rejects layouts that break the join invariants: duplicate
// stable keys or a section key appearing more than once.
func validate(l layout.Layout) error {
	names := make(map[row.SectionKey]bool, len(l.Sections))
	ids := make(map[row.StableKey]bool, l.RowCount())
	for _, s := range l.Sections {
		if names[s.Name] {
			return &layout.InvariantError{Message: fmt.Sprintf("section %q appears twice", s.Name)}
		}
		names[s.Name] = true
		for _, r := range s.Rows {
			if ids[r.ID] {
				return &layout.InvariantError{Message: fmt.Sprintf("duplicate stable key %q", r.ID)}
			}
			ids[r.ID] = true
		}
	}
	return nil
}
