package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sectional/internal/fetch"
	"github.com/roach88/sectional/internal/row"
	"github.com/roach88/sectional/internal/testutil"
)

func batch(ids ...string) fetch.ChangeSet {
	cs := fetch.ChangeSet{}
	for _, id := range ids {
		cs.Added = append(cs.Added, testutil.Obj(id, "A", row.Int(1)))
	}
	return cs
}

func TestBatchQueue_DrainMergesPendingBatches(t *testing.T) {
	q := newBatchQueue()

	require.True(t, q.Enqueue(batch("a1")))
	require.True(t, q.Enqueue(batch("a2", "a3")))
	require.True(t, q.Enqueue(fetch.ChangeSet{Removed: []fetch.Object{testutil.Obj("a4", "A", row.Int(4))}}))
	assert.Equal(t, 3, q.Len())

	merged, ok := q.Drain()
	require.True(t, ok)
	assert.Len(t, merged.Added, 3)
	assert.Len(t, merged.Removed, 1)
	assert.Zero(t, q.Len())

	_, ok = q.Drain()
	assert.False(t, ok)
}

func TestBatchQueue_SignalCoalesces(t *testing.T) {
	q := newBatchQueue()

	q.Enqueue(batch("a1"))
	q.Enqueue(batch("a2"))

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signal channel should hold at most one pending signal")
	default:
	}

	_, ok := q.Drain()
	assert.True(t, ok)
}

func TestBatchQueue_ClosedDistinguishesStaleSignal(t *testing.T) {
	q := newBatchQueue()

	// A drained queue with a leftover token looks empty but is not closed.
	q.Enqueue(batch("a1"))
	_, ok := q.Drain()
	require.True(t, ok)
	assert.False(t, q.Closed())
	assert.Zero(t, q.Len())

	q.Close()
	assert.True(t, q.Closed())
}

func TestBatchQueue_CloseWakesWaitersAndRejectsEnqueue(t *testing.T) {
	q := newBatchQueue()
	q.Close()
	q.Close() // idempotent

	// The closed signal channel fires immediately.
	<-q.Wait()

	assert.False(t, q.Enqueue(batch("a1")))
	_, ok := q.Drain()
	assert.False(t, ok)
}
