package diff

import (
	"fmt"

	"github.com/roach88/sectional/internal/row"
)

// ChangeEvent is the sealed set of structural changes a diff can emit.
// Only the six event structs in this file implement it; each carries
// exactly the fields relevant to its case.
//
// Index paths are computed against the progressively-mutated cursor state
// at the moment of emission, so a consumer applying events one at a time to
// a mirrored copy of the old layout never observes an inconsistent
// intermediate state.
type ChangeEvent interface {
	changeEvent()
	fmt.Stringer
}

// SectionInsert reports a new section appearing at Index.
type SectionInsert struct {
	Name  row.SectionKey
	Index int
}

func (SectionInsert) changeEvent() {}

// String formats the event for logs and traces.
func (e SectionInsert) String() string {
	return fmt.Sprintf("section-insert %q at %d", e.Name, e.Index)
}

// SectionDelete reports the section at Index disappearing, together with
// any rows it still held. No individual row events follow for its rows.
type SectionDelete struct {
	Name  row.SectionKey
	Index int
}

func (SectionDelete) changeEvent() {}

// String formats the event for logs and traces.
func (e SectionDelete) String() string {
	return fmt.Sprintf("section-delete %q at %d", e.Name, e.Index)
}

// RowInsert reports a row appearing at Path. Rows after it are renumbered
// by the consumer without individual events.
type RowInsert struct {
	Row  row.RowIdentity
	Path row.IndexPath
}

func (RowInsert) changeEvent() {}

// String formats the event for logs and traces.
func (e RowInsert) String() string {
	return fmt.Sprintf("row-insert %q at %s", e.Row.ID, e.Path)
}

// RowDelete reports the row at Path disappearing from the result entirely.
type RowDelete struct {
	Row  row.RowIdentity
	Path row.IndexPath
}

func (RowDelete) changeEvent() {}

// String formats the event for logs and traces.
func (e RowDelete) String() string {
	return fmt.Sprintf("row-delete %q at %s", e.Row.ID, e.Path)
}

// RowMove reports a row relocating from From to To because one of its
// sort-descriptor attributes (or its section membership) changed. An
// update of the row is implied; no separate RowUpdate is emitted even when
// non-sort attributes also changed.
type RowMove struct {
	Row  row.RowIdentity
	From row.IndexPath
	To   row.IndexPath
}

func (RowMove) changeEvent() {}

// String formats the event for logs and traces.
func (e RowMove) String() string {
	return fmt.Sprintf("row-move %q %s -> %s", e.Row.ID, e.From, e.To)
}

// RowUpdate reports a row whose tracked non-sort attributes changed while
// its position did not.
type RowUpdate struct {
	Row  row.RowIdentity
	Path row.IndexPath
}

func (RowUpdate) changeEvent() {}

// String formats the event for logs and traces.
func (e RowUpdate) String() string {
	return fmt.Sprintf("row-update %q at %s", e.Row.ID, e.Path)
}
