package layout

import (
	"fmt"

	"github.com/roach88/sectional/internal/row"
)

// Cursor is a mutable arena over a layout. The diff engine applies each
// change to the cursor as it emits the corresponding event, so that later
// events' index paths stay consistent with everything already applied.
//
// A cursor additionally keeps a reverse index from stable key to current
// position, which makes PathOf O(1) during a diff pass.
//
// Cursor is not safe for concurrent use; the single writer that owns the
// diff cycle is the only mutator.
type Cursor struct {
	sections []Section
	paths    map[row.StableKey]row.IndexPath
}

// NewCursor builds a cursor positioned at the given layout. The layout is
// deep-copied; the caller's value is never mutated.
func NewCursor(l Layout) *Cursor {
	c := &Cursor{
		sections: l.Clone().Sections,
		paths:    make(map[row.StableKey]row.IndexPath, l.RowCount()),
	}
	c.reindex(0)
	return c
}

// reindex rebuilds the reverse index for sections at or after from.
func (c *Cursor) reindex(from int) {
	if from < 0 {
		from = 0
	}
	for si := from; si < len(c.sections); si++ {
		for ri, r := range c.sections[si].Rows {
			c.paths[r.ID] = row.IndexPath{Section: si, Row: ri}
		}
	}
}

// Snapshot returns the cursor's current state as an independent layout
// value.
func (c *Cursor) Snapshot() Layout {
	return Layout{Sections: c.sections}.Clone()
}

// SectionCount returns the current number of sections.
func (c *Cursor) SectionCount() int {
	return len(c.sections)
}

// RowCount returns the current number of rows in the section at index, or
// -1 if the index is out of range.
func (c *Cursor) RowCount(section int) int {
	if section < 0 || section >= len(c.sections) {
		return -1
	}
	return len(c.sections[section].Rows)
}

// SectionName returns the name of the section at index.
func (c *Cursor) SectionName(section int) (row.SectionKey, error) {
	if section < 0 || section >= len(c.sections) {
		return "", &InvariantError{Message: fmt.Sprintf("section index %d out of range [0,%d)", section, len(c.sections))}
	}
	return c.sections[section].Name, nil
}

// RowAt returns the identity at an index path.
func (c *Cursor) RowAt(p row.IndexPath) (row.RowIdentity, error) {
	if p.Section < 0 || p.Section >= len(c.sections) {
		return row.RowIdentity{}, &InvariantError{Message: fmt.Sprintf("index path %s: section out of range", p)}
	}
	rows := c.sections[p.Section].Rows
	if p.Row < 0 || p.Row >= len(rows) {
		return row.RowIdentity{}, &InvariantError{Message: fmt.Sprintf("index path %s: row out of range", p)}
	}
	return rows[p.Row], nil
}

// PathOf returns the current index path of a stable key.
func (c *Cursor) PathOf(id row.StableKey) (row.IndexPath, bool) {
	p, ok := c.paths[id]
	return p, ok
}

// InsertSection inserts an empty section named name at index at.
func (c *Cursor) InsertSection(at int, name row.SectionKey) error {
	if at < 0 || at > len(c.sections) {
		return &InvariantError{Message: fmt.Sprintf("insert section at %d out of range [0,%d]", at, len(c.sections))}
	}
	c.sections = append(c.sections, Section{})
	copy(c.sections[at+1:], c.sections[at:])
	c.sections[at] = Section{Name: name}
	c.reindex(at + 1)
	return nil
}

// DeleteSection removes the section at index at together with any rows it
// still holds.
func (c *Cursor) DeleteSection(at int) error {
	if at < 0 || at >= len(c.sections) {
		return &InvariantError{Message: fmt.Sprintf("delete section at %d out of range [0,%d)", at, len(c.sections))}
	}
	for _, r := range c.sections[at].Rows {
		delete(c.paths, r.ID)
	}
	c.sections = append(c.sections[:at], c.sections[at+1:]...)
	c.reindex(at)
	return nil
}

// InsertRow inserts an identity at an index path.
func (c *Cursor) InsertRow(p row.IndexPath, id row.RowIdentity) error {
	if p.Section < 0 || p.Section >= len(c.sections) {
		return &InvariantError{Message: fmt.Sprintf("insert row at %s: section out of range", p)}
	}
	rows := c.sections[p.Section].Rows
	if p.Row < 0 || p.Row > len(rows) {
		return &InvariantError{Message: fmt.Sprintf("insert row at %s: row out of range [0,%d]", p, len(rows))}
	}
	if _, dup := c.paths[id.ID]; dup {
		return &InvariantError{Message: fmt.Sprintf("insert row %q: stable key already present", id.ID)}
	}
	rows = append(rows, row.RowIdentity{})
	copy(rows[p.Row+1:], rows[p.Row:])
	rows[p.Row] = id
	c.sections[p.Section].Rows = rows
	for ri := p.Row; ri < len(rows); ri++ {
		c.paths[rows[ri].ID] = row.IndexPath{Section: p.Section, Row: ri}
	}
	return nil
}

// DeleteRow removes the row at an index path.
func (c *Cursor) DeleteRow(p row.IndexPath) error {
	r, err := c.RowAt(p)
	if err != nil {
		return err
	}
	delete(c.paths, r.ID)
	rows := c.sections[p.Section].Rows
	rows = append(rows[:p.Row], rows[p.Row+1:]...)
	c.sections[p.Section].Rows = rows
	for ri := p.Row; ri < len(rows); ri++ {
		c.paths[rows[ri].ID] = row.IndexPath{Section: p.Section, Row: ri}
	}
	return nil
}

// MoveRow relocates the row at from to to. The to path is interpreted
// against the state after the removal, matching how a consumer applies a
// move to its own mirrored structure.
func (c *Cursor) MoveRow(from, to row.IndexPath, id row.RowIdentity) error {
	current, err := c.RowAt(from)
	if err != nil {
		return err
	}
	if current.ID != id.ID {
		return &InvariantError{Message: fmt.Sprintf("move from %s: found %q, expected %q", from, current.ID, id.ID)}
	}
	if err := c.DeleteRow(from); err != nil {
		return err
	}
	return c.InsertRow(to, id)
}

// UpdateRow replaces the identity at an index path in place. Position is
// unchanged; only the carried sort values and digest are refreshed.
func (c *Cursor) UpdateRow(p row.IndexPath, id row.RowIdentity) error {
	current, err := c.RowAt(p)
	if err != nil {
		return err
	}
	if current.ID != id.ID {
		return &InvariantError{Message: fmt.Sprintf("update at %s: found %q, expected %q", p, current.ID, id.ID)}
	}
	c.sections[p.Section].Rows[p.Row] = id
	return nil
}
