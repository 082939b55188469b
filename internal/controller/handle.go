package controller

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a registered listener.
type Handle string

// HandleGenerator generates unique listener handles.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type HandleGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 handles.
//
// UUIDv7 embeds a timestamp in the most significant bits, making handles
// sortable by registration time. This is helpful when debugging listener
// delivery order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined handles for testing.
//
// Tests can provide a known sequence of handles and assert exact
// registration results.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu      sync.Mutex
	handles []string
	idx     int
}

// NewFixedGenerator creates a generator that returns handles in order.
//
// Example:
//
//	gen := NewFixedGenerator("h-1", "h-2")
//	gen.Generate() // "h-1"
//	gen.Generate() // "h-2"
//	gen.Generate() // panic: all handles exhausted
func NewFixedGenerator(handles ...string) *FixedGenerator {
	return &FixedGenerator{handles: handles}
}

// Generate returns the next predetermined handle.
//
// Panics if all handles have been consumed. This is a fail-fast approach
// to catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.handles) {
		panic("FixedGenerator: all handles exhausted")
	}
	h := g.handles[g.idx]
	g.idx++
	return h
}
