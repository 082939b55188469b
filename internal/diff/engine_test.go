package diff_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sectional/internal/diff"
	"github.com/roach88/sectional/internal/fetch"
	"github.com/roach88/sectional/internal/layout"
	"github.com/roach88/sectional/internal/row"
	"github.com/roach88/sectional/internal/testutil"
)

func groupedRequest() fetch.Request {
	return fetch.Request{
		Entity: "Message",
		SortDescriptors: []fetch.SortDescriptor{
			{Key: "bucket", Ascending: true},
			{Key: "rank", Ascending: true},
		},
		SectionKeyPath: "bucket",
	}
}

func mustGroup(t *testing.T, objs ...fetch.Object) layout.Layout {
	t.Helper()
	l, err := layout.Group(objs, groupedRequest())
	require.NoError(t, err)
	return l
}

// replay applies events one at a time to a mirror of the old layout, the
// way a presentation-layer consumer would, and returns the mirror.
func replay(t *testing.T, old layout.Layout, events []diff.ChangeEvent) layout.Layout {
	t.Helper()
	mirror := layout.NewCursor(old)
	for _, ev := range events {
		var err error
		switch e := ev.(type) {
		case diff.SectionDelete:
			err = mirror.DeleteSection(e.Index)
		case diff.SectionInsert:
			err = mirror.InsertSection(e.Index, e.Name)
		case diff.RowDelete:
			err = mirror.DeleteRow(e.Path)
		case diff.RowInsert:
			err = mirror.InsertRow(e.Path, e.Row)
		case diff.RowMove:
			err = mirror.MoveRow(e.From, e.To, e.Row)
		case diff.RowUpdate:
			err = mirror.UpdateRow(e.Path, e.Row)
		default:
			t.Fatalf("unknown event type %T", ev)
		}
		require.NoError(t, err, "applying %s", ev)
	}
	return mirror.Snapshot()
}

func TestCompute_NoChanges(t *testing.T) {
	l := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(l, l)
	require.NoError(t, err)
	assert.Empty(t, res.Events, "diffing a snapshot against itself must produce zero events")
	assert.True(t, res.Layout.Equal(l))
}

func TestCompute_FirstFetchIsInsertOnly(t *testing.T) {
	next := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "A", row.String("A"), row.Int(2)),
		testutil.Obj("r3", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(layout.Layout{}, next)
	require.NoError(t, err)

	var sectionInserts, rowInserts, other int
	sawRow := false
	for _, ev := range res.Events {
		switch ev.(type) {
		case diff.SectionInsert:
			sectionInserts++
			assert.False(t, sawRow, "section events must precede row events")
		case diff.RowInsert:
			sawRow = true
			rowInserts++
		default:
			other++
		}
	}
	assert.Equal(t, 2, sectionInserts)
	assert.Equal(t, 3, rowInserts)
	assert.Zero(t, other, "first fetch can only produce inserts")

	assert.True(t, replay(t, layout.Layout{}, res.Events).Equal(next))
}

func TestCompute_TeardownIsDeleteOnly(t *testing.T) {
	old := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "B", row.String("B"), row.Int(1)),
		testutil.Obj("r3", "B", row.String("B"), row.Int(2)),
	)

	res, err := diff.Compute(old, layout.Layout{})
	require.NoError(t, err)

	require.Len(t, res.Events, 2, "teardown is one SectionDelete per section, nothing else")
	d0, ok := res.Events[0].(diff.SectionDelete)
	require.True(t, ok, "event 0 is %T", res.Events[0])
	d1, ok := res.Events[1].(diff.SectionDelete)
	require.True(t, ok, "event 1 is %T", res.Events[1])
	assert.Equal(t, "B", string(d0.Name), "deletes run in descending index order")
	assert.Equal(t, 1, d0.Index)
	assert.Equal(t, "A", string(d1.Name))
	assert.Equal(t, 0, d1.Index)

	assert.True(t, replay(t, old, res.Events).IsEmpty())
}

func TestCompute_SectionDeleteSuppressesRowEvents(t *testing.T) {
	// Old has sections A and B; new keeps only B with the same rows.
	old := mustGroup(t,
		testutil.Obj("a1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("a2", "A", row.String("A"), row.Int(2)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)
	next := mustGroup(t,
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	del, ok := res.Events[0].(diff.SectionDelete)
	require.True(t, ok)
	assert.Equal(t, "A", string(del.Name))
	assert.Equal(t, 0, del.Index)

	assert.True(t, replay(t, old, res.Events).Equal(next))
}

func TestCompute_MoveSuppressesUpdate(t *testing.T) {
	// r2's sort key AND its tracked attributes change at once: exactly one
	// RowMove, never an additional RowUpdate.
	old := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "A", row.String("A"), row.Int(2)),
	)
	next := mustGroup(t,
		testutil.Obj("r2", "A", row.String("A"), row.Int(0)).WithDigest("changed"),
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	mv, ok := res.Events[0].(diff.RowMove)
	require.True(t, ok, "single event is %T, want RowMove", res.Events[0])
	assert.Equal(t, row.StableKey("r2"), mv.Row.ID)
	assert.Equal(t, row.IndexPath{Section: 0, Row: 1}, mv.From)
	assert.Equal(t, row.IndexPath{Section: 0, Row: 0}, mv.To)

	assert.True(t, replay(t, old, res.Events).Equal(next))
}

func TestCompute_UpdateWithoutPositionChange(t *testing.T) {
	old := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "A", row.String("A"), row.Int(2)),
	)
	next := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "A", row.String("A"), row.Int(2)).WithDigest("changed"),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	up, ok := res.Events[0].(diff.RowUpdate)
	require.True(t, ok)
	assert.Equal(t, row.StableKey("r2"), up.Row.ID)
	assert.Equal(t, row.IndexPath{Section: 0, Row: 1}, up.Path)
}

func TestCompute_SelfMoveOnSortChange(t *testing.T) {
	// Sort value changes but the resultant position is the same: the
	// heuristic is literal, one RowMove with identical from and to.
	old := mustGroup(t, testutil.Obj("r1", "A", row.String("A"), row.Int(1)))
	next := mustGroup(t, testutil.Obj("r1", "A", row.String("A"), row.Int(5)))

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	mv, ok := res.Events[0].(diff.RowMove)
	require.True(t, ok)
	assert.Equal(t, mv.From, mv.To)
}

func TestCompute_RowCrossesSections(t *testing.T) {
	old := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "A", row.String("A"), row.Int(2)),
		testutil.Obj("r3", "B", row.String("B"), row.Int(1)),
	)
	next := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "B", row.String("B"), row.Int(0)),
		testutil.Obj("r3", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	mv, ok := res.Events[0].(diff.RowMove)
	require.True(t, ok)
	assert.Equal(t, row.StableKey("r2"), mv.Row.ID)
	assert.Equal(t, row.IndexPath{Section: 0, Row: 1}, mv.From)
	assert.Equal(t, row.IndexPath{Section: 1, Row: 0}, mv.To)

	assert.True(t, replay(t, old, res.Events).Equal(next))
}

func TestCompute_EmptiedSectionIsDeleted(t *testing.T) {
	// Section A loses its only row; A itself is a SectionDelete and the
	// row emits nothing separately.
	old := mustGroup(t,
		testutil.Obj("a1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)
	next := mustGroup(t,
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	_, ok := res.Events[0].(diff.SectionDelete)
	assert.True(t, ok)
}

func TestCompute_NewSectionBeforeItsRows(t *testing.T) {
	old := mustGroup(t, testutil.Obj("b1", "B", row.String("B"), row.Int(1)))
	next := mustGroup(t,
		testutil.Obj("a1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	ins, ok := res.Events[0].(diff.SectionInsert)
	require.True(t, ok, "SectionInsert must precede its rows' inserts")
	assert.Equal(t, "A", string(ins.Name))
	assert.Equal(t, 0, ins.Index)
	rowIns, ok := res.Events[1].(diff.RowInsert)
	require.True(t, ok)
	assert.Equal(t, row.IndexPath{Section: 0, Row: 0}, rowIns.Path)

	assert.True(t, replay(t, old, res.Events).Equal(next))
}

func TestCompute_RowSurvivesDeletedSectionAsInsert(t *testing.T) {
	// a1's section disappears while a1 itself lives on in B. The old home
	// went down with its SectionDelete, so a1 reappears as a RowInsert.
	old := mustGroup(t,
		testutil.Obj("a1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)
	next := mustGroup(t,
		testutil.Obj("a1", "B", row.String("B"), row.Int(0)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	_, ok := res.Events[0].(diff.SectionDelete)
	require.True(t, ok)
	ins, ok := res.Events[1].(diff.RowInsert)
	require.True(t, ok)
	assert.Equal(t, row.StableKey("a1"), ins.Row.ID)

	assert.True(t, replay(t, old, res.Events).Equal(next))
}

func TestCompute_MixedCycleReplaysExactly(t *testing.T) {
	old := mustGroup(t,
		testutil.Obj("a1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("a2", "A", row.String("A"), row.Int(2)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
		testutil.Obj("b2", "B", row.String("B"), row.Int(2)),
		testutil.Obj("c1", "C", row.String("C"), row.Int(1)),
	)
	next := mustGroup(t,
		// a2 moved up within A, a1 deleted, a3 inserted.
		testutil.Obj("a2", "A", row.String("A"), row.Int(0)),
		testutil.Obj("a3", "A", row.String("A"), row.Int(1)),
		// b1 updated in place, b2 unchanged.
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)).WithDigest("changed"),
		testutil.Obj("b2", "B", row.String("B"), row.Int(2)),
		// section C gone, section D new.
		testutil.Obj("d1", "D", row.String("D"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)
	assert.True(t, replay(t, old, res.Events).Equal(next), "events must transform old into new exactly")
}

func TestCompute_ColdLoadInfersMovesPositionally(t *testing.T) {
	// A layout restored from disk has identity and order but no sort
	// values and no digests.
	restored := layout.Layout{Sections: []layout.Section{{
		Name: "A",
		Rows: []row.RowIdentity{
			{ID: "r1", HasSection: true, Section: "A"},
			{ID: "r2", HasSection: true, Section: "A"},
		},
	}}}
	next := mustGroup(t,
		testutil.Obj("r2", "A", row.String("A"), row.Int(0)),
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
	)

	res, err := diff.Compute(restored, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	mv, ok := res.Events[0].(diff.RowMove)
	require.True(t, ok, "cold-load reorder is a positional move, got %T", res.Events[0])
	assert.Equal(t, row.StableKey("r2"), mv.Row.ID)
	assert.True(t, replay(t, restored, res.Events).Equal(next))
}

func TestCompute_ColdLoadUnchangedOrderIsQuiet(t *testing.T) {
	restored := layout.Layout{Sections: []layout.Section{{
		Name: "A",
		Rows: []row.RowIdentity{
			{ID: "r1", HasSection: true, Section: "A"},
			{ID: "r2", HasSection: true, Section: "A"},
		},
	}}}
	next := mustGroup(t,
		testutil.Obj("r1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("r2", "A", row.String("A"), row.Int(2)),
	)

	res, err := diff.Compute(restored, next)
	require.NoError(t, err)
	assert.Empty(t, res.Events, "unchanged order after a cold load must not fabricate moves or updates")
}

func TestCompute_DuplicateIDAborts(t *testing.T) {
	bad := layout.Layout{Sections: []layout.Section{
		{Name: "A", Rows: []row.RowIdentity{{ID: "r1"}, {ID: "r1"}}},
	}}

	_, err := diff.Compute(layout.Layout{}, bad)
	var invErr *layout.InvariantError
	require.True(t, errors.As(err, &invErr), "error = %v", err)
}

func TestCompute_DuplicateSectionAborts(t *testing.T) {
	bad := layout.Layout{Sections: []layout.Section{
		{Name: "A", Rows: []row.RowIdentity{{ID: "r1"}}},
		{Name: "A", Rows: []row.RowIdentity{{ID: "r2"}}},
	}}

	_, err := diff.Compute(bad, layout.Layout{})
	var invErr *layout.InvariantError
	require.True(t, errors.As(err, &invErr), "error = %v", err)
}

func TestCompute_Ungrouped(t *testing.T) {
	flat := fetch.Request{
		Entity:          "Message",
		SortDescriptors: []fetch.SortDescriptor{{Key: "rank", Ascending: true}},
	}
	grp := func(objs ...fetch.Object) layout.Layout {
		l, err := layout.Group(objs, flat)
		require.NoError(t, err)
		return l
	}

	old := grp(testutil.FlatObj("r1", row.Int(1)), testutil.FlatObj("r2", row.Int(2)))
	next := grp(testutil.FlatObj("r2", row.Int(2)), testutil.FlatObj("r3", row.Int(3)))

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	del, ok := res.Events[0].(diff.RowDelete)
	require.True(t, ok)
	assert.Equal(t, row.StableKey("r1"), del.Row.ID)
	ins, ok := res.Events[1].(diff.RowInsert)
	require.True(t, ok)
	assert.Equal(t, row.StableKey("r3"), ins.Row.ID)

	assert.True(t, replay(t, old, res.Events).Equal(next))
}
