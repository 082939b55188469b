// Package controller orchestrates one query configuration end to end: it
// owns a layout cache entry, drives diff cycles when the query engine
// reports changes, and delivers ordered change events to registered
// listeners.
//
// A controller is affine to a single owning goroutine for its mutating
// operations (PerformFetch, Reset, ProcessChanges, Run). Read accessors
// take a snapshot under a read lock and may be called from any goroutine.
package controller
