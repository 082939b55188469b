// Package fetch defines the controller configuration (entity, predicate,
// sort descriptors, section key path) and the boundary to the external
// query engine.
//
// The query engine is a collaborator, not part of this module: it executes
// a request against a live object store and returns an ordered sequence of
// matching objects, and it delivers raw change notifications (added,
// removed, modified) in batches. Everything behind the Engine interface is
// someone else's problem; this module only requires that Execute returns
// objects already ordered by the configured sort descriptors and that every
// object carries a stable identity.
package fetch
