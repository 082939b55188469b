package fetch

import (
	"context"
	"fmt"

	"github.com/roach88/sectional/internal/row"
)

// Object is a raw object handed over by the query engine. The only
// requirement on it is an identity-bearing snapshot: a stable key, the
// section key value, the sort-attribute tuple, and a digest over the
// tracked non-sort attributes.
//
// Identity() must be pure and safe to call at any time; the returned
// RowIdentity is a value and may cross goroutines freely even when the
// underlying live object may not.
type Object interface {
	Identity() row.RowIdentity
}

// ChangeSet is one batch of raw change notifications from the query
// engine. A single object appears in at most one of the three slices.
type ChangeSet struct {
	Added    []Object
	Removed  []Object
	Modified []Object
}

// Empty reports whether the batch carries no changes.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Subscription is a live registration for change notifications.
type Subscription interface {
	// Unsubscribe releases the registration. Idempotent.
	Unsubscribe()
}

// Engine is the external query engine boundary.
type Engine interface {
	// Execute runs the request once and returns the matching objects
	// ordered by the request's sort descriptors. Failures are reported as
	// QueryExecutionErrors by the caller.
	Execute(ctx context.Context, req Request) ([]Object, error)

	// Subscribe registers for change notifications on the request's result
	// set. The callback receives coalesced batches; it may be invoked from
	// any goroutine the engine chooses.
	Subscribe(req Request, fn func(ChangeSet)) (Subscription, error)
}

// QueryExecutionError wraps a query engine failure. The layout cache is
// left untouched when one occurs; the fetch simply fails.
type QueryExecutionError struct {
	Entity string
	Err    error
}

// Error implements the error interface.
func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed for entity %q: %v", e.Entity, e.Err)
}

// Unwrap exposes the underlying engine error.
func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}
