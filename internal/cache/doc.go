// Package cache provides durable, named storage for materialized layouts.
//
// Each cache name maps to exactly one layout: the ordered section names
// and per-section ordered stable row identifiers as of the last successful
// fetch, keyed by the owning controller's configuration signature. A
// signature mismatch on load means the configuration changed and the
// persisted layout is discarded.
//
// Backed by SQLite with WAL mode. A whole-layout store is a single
// transaction (a reader never observes a partially written layout), and
// the incremental appliers replay one diff cycle's events inside one
// transaction for the same guarantee.
//
// Ownership: a cache name is exclusively owned by one attached controller
// at a time. Deleting a name that is still attached is a programming
// error, reported loudly as a PreconditionViolation. Deleting a
// nonexistent name is a no-op.
package cache
