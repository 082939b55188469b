package diff_test

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sectional/internal/diff"
	"github.com/roach88/sectional/internal/row"
	"github.com/roach88/sectional/internal/testutil"
)

// traceEvents renders an event sequence as plain maps so the JSON output
// is deterministic (alphabetical keys) for golden comparison.
func traceEvents(events []diff.ChangeEvent) []map[string]any {
	pathMap := func(p row.IndexPath) map[string]any {
		return map[string]any{"section": p.Section, "row": p.Row}
	}
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		switch e := ev.(type) {
		case diff.SectionInsert:
			out = append(out, map[string]any{"type": "section-insert", "name": string(e.Name), "index": e.Index})
		case diff.SectionDelete:
			out = append(out, map[string]any{"type": "section-delete", "name": string(e.Name), "index": e.Index})
		case diff.RowInsert:
			out = append(out, map[string]any{"type": "row-insert", "id": string(e.Row.ID), "path": pathMap(e.Path)})
		case diff.RowDelete:
			out = append(out, map[string]any{"type": "row-delete", "id": string(e.Row.ID), "path": pathMap(e.Path)})
		case diff.RowMove:
			out = append(out, map[string]any{"type": "row-move", "id": string(e.Row.ID), "from": pathMap(e.From), "to": pathMap(e.To)})
		case diff.RowUpdate:
			out = append(out, map[string]any{"type": "row-update", "id": string(e.Row.ID), "path": pathMap(e.Path)})
		}
	}
	return out
}

// TestGolden_MixedCycle pins the exact event sequence of a representative
// cycle touching every event kind: a section teardown, a section insert, a
// row delete, a sort-key move, two inserts, and an in-place update.
//
// Regenerate with: go test ./internal/diff -update
func TestGolden_MixedCycle(t *testing.T) {
	old := mustGroup(t,
		testutil.Obj("a1", "A", row.String("A"), row.Int(1)),
		testutil.Obj("a2", "A", row.String("A"), row.Int(2)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)),
		testutil.Obj("b2", "B", row.String("B"), row.Int(2)),
		testutil.Obj("c1", "C", row.String("C"), row.Int(1)),
	)
	next := mustGroup(t,
		testutil.Obj("a2", "A", row.String("A"), row.Int(0)),
		testutil.Obj("a3", "A", row.String("A"), row.Int(1)),
		testutil.Obj("b1", "B", row.String("B"), row.Int(1)).WithDigest("changed"),
		testutil.Obj("b2", "B", row.String("B"), row.Int(2)),
		testutil.Obj("d1", "D", row.String("D"), row.Int(1)),
	)

	res, err := diff.Compute(old, next)
	require.NoError(t, err)

	trace := map[string]any{
		"scenario": "mixed-cycle",
		"events":   traceEvents(res.Events),
	}
	data, err := json.MarshalIndent(trace, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t)
	g.Assert(t, "mixed_cycle", data)
}
