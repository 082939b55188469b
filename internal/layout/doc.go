// Package layout holds the materialized shape of a fetched result: an
// ordered sequence of sections, each an ordered sequence of row
// identities.
//
// Two representations live here. Layout is the immutable value exchanged
// with the cache and the diff engine. Cursor is the mutable arena the diff
// engine mutates step-by-step while emitting events, so that every emitted
// index path is computed against the evolving state at the moment of
// emission rather than against the final layout.
package layout
