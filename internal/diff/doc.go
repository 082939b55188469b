// Package diff computes the ordered change events that transform one
// materialized layout into the next.
//
// The computation is two-pass: sections first (deletes in descending index
// order, then inserts in ascending order), then rows joined across old and
// new by stable key. Row events follow the classic boundary-first contract:
// deletes, then moves and inserts interleaved in ascending final-position
// order, then updates. Every index path is read from a mutable cursor that
// tracks the events already emitted.
//
// Move versus update: a changed sort-descriptor attribute (or changed
// section membership) produces exactly one RowMove and implies the update;
// a changed tracked attribute with an unchanged position produces a
// RowUpdate. Rows restored from a persisted layout carry no sort values,
// so after a cold load moves are inferred positionally instead.
package diff
