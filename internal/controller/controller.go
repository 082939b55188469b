package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/sectional/internal/cache"
	"github.com/roach88/sectional/internal/diff"
	"github.com/roach88/sectional/internal/fetch"
	"github.com/roach88/sectional/internal/layout"
	"github.com/roach88/sectional/internal/row"
)

// inMemoryCacheName backs controllers constructed without WithCacheName.
// The cache itself is in-memory, so the name never collides across
// controllers (each owns its own database).
const inMemoryCacheName = "in-memory"

// Controller binds one query configuration to one layout cache entry and
// drives diff cycles against it.
//
// Mutating operations (PerformFetch, Reset, ProcessChanges, Run, Close)
// must be serialized by the caller on a single owning goroutine. Read
// accessors and listener registration are safe from any goroutine.
type Controller struct {
	engine    fetch.Engine
	req       fetch.Request
	signature string

	cache     *cache.Cache
	cacheName string

	handleGen HandleGenerator
	queue     *batchQueue
	sub       fetch.Subscription

	mu        sync.RWMutex
	listeners []registration
	current   layout.Layout
	paths     map[row.StableKey]row.IndexPath
	objects   map[row.StableKey]fetch.Object
	fetched   bool
	closed    bool
}

// Option configures a Controller at construction.
type Option func(*options)

type options struct {
	cacheName string
	cachePath string
	handleGen HandleGenerator
}

// WithCacheName binds the controller to a named cache entry. Pair with
// WithCachePath for disk durability; without a path the entry lives in an
// in-memory database and dies with the process.
func WithCacheName(name string) Option {
	return func(o *options) {
		o.cacheName = name
	}
}

// WithCachePath sets the SQLite file backing the cache.
// Ignored unless WithCacheName is also given.
func WithCachePath(path string) Option {
	return func(o *options) {
		o.cachePath = path
	}
}

// WithHandleGenerator overrides the listener handle generator.
// Tests use FixedGenerator for deterministic handles.
func WithHandleGenerator(g HandleGenerator) Option {
	return func(o *options) {
		o.handleGen = g
	}
}

// New validates the request, opens (or creates) the layout cache, and
// attaches the cache name. Configuration faults surface here so an
// invalid controller never reaches the fetched state.
func New(engine fetch.Engine, req fetch.Request, opts ...Option) (*Controller, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o := options{handleGen: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}

	name := o.cacheName
	var (
		store *cache.Cache
		err   error
	)
	if name == "" {
		name = inMemoryCacheName
		store, err = cache.OpenInMemory()
	} else if o.cachePath == "" {
		store, err = cache.OpenInMemory()
	} else {
		store, err = cache.Open(o.cachePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open layout cache: %w", err)
	}

	if err := store.Attach(name); err != nil {
		store.Close()
		return nil, err
	}

	sig, err := req.Signature()
	if err != nil {
		store.Detach(name)
		store.Close()
		return nil, fmt.Errorf("config signature: %w", err)
	}

	return &Controller{
		engine:    engine,
		req:       req,
		signature: sig,
		cache:     store,
		cacheName: name,
		handleGen: o.handleGen,
		queue:     newBatchQueue(),
	}, nil
}

// PerformFetch runs the query once and makes its result the current
// layout. If a durable layout from an earlier process survives for this
// configuration, the fetch is delivered to listeners as a diff cycle
// against it; a first-ever fetch is silent.
//
// Query failure leaves the cache and the current layout untouched.
func (c *Controller) PerformFetch(ctx context.Context) error {
	objects, err := c.engine.Execute(ctx, c.req)
	if err != nil {
		return &fetch.QueryExecutionError{Entity: c.req.Entity, Err: err}
	}

	next, err := layout.Group(objects, c.req)
	if err != nil {
		return err
	}

	baseline, err := c.cache.Load(ctx, c.cacheName, c.signature)
	if err != nil {
		return err
	}

	var events []diff.ChangeEvent
	if !baseline.IsEmpty() {
		res, err := diff.Compute(baseline, next)
		if err != nil {
			// A stale durable layout that no longer satisfies the diff
			// invariants is discarded, not fatal. The fetch proceeds as
			// an initial build.
			slog.Warn("discarding undiffable durable layout",
				"cache_name", c.cacheName,
				"error", err,
			)
		} else {
			events = res.Events
		}
	}

	if err := c.cache.Store(ctx, c.cacheName, c.signature, next); err != nil {
		return err
	}

	c.setCurrent(next, objects)

	if c.sub == nil {
		sub, err := c.engine.Subscribe(c.req, c.onChangeSet)
		if err != nil {
			return &fetch.QueryExecutionError{Entity: c.req.Entity, Err: err}
		}
		c.sub = sub
	}

	c.deliver(events)

	slog.Info("fetch performed",
		"cache_name", c.cacheName,
		"sections", len(next.Sections),
		"rows", next.RowCount(),
		"restored_events", len(events),
	)
	return nil
}

// ProcessChanges runs one synchronous diff cycle for a change-set batch.
// Callers that own their own scheduling use it directly; Run calls it for
// each drained batch.
//
// The cycle is atomic with respect to listeners: events are computed and
// persisted in full before any delivery, and on any error the listeners
// see nothing while the cache keeps the previous layout. Reset is the
// recovery path after a failed cycle.
func (c *Controller) ProcessChanges(ctx context.Context, cs fetch.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	old := c.currentLayout()

	objects, err := c.engine.Execute(ctx, c.req)
	if err != nil {
		return &fetch.QueryExecutionError{Entity: c.req.Entity, Err: err}
	}

	next, err := layout.Group(objects, c.req)
	if err != nil {
		return err
	}

	res, err := diff.Compute(old, next)
	if err != nil {
		slog.Error("diff cycle aborted",
			"cache_name", c.cacheName,
			"error", err,
		)
		return err
	}

	// Persist before delivery so a storage fault never leaves listeners
	// ahead of the durable baseline. A rebuild from an empty baseline is
	// a wholesale store; a normal cycle replays the events.
	if old.IsEmpty() {
		err = c.cache.Store(ctx, c.cacheName, c.signature, next)
	} else {
		err = c.cache.ApplyEvents(ctx, c.cacheName, res.Events)
	}
	if err != nil {
		return err
	}

	c.setCurrent(res.Layout, objects)
	c.deliver(res.Events)

	slog.Info("diff cycle delivered",
		"cache_name", c.cacheName,
		"events", len(res.Events),
		"added", len(cs.Added),
		"removed", len(cs.Removed),
		"modified", len(cs.Modified),
	)
	return nil
}

// Run is the single-writer loop draining notification batches into diff
// cycles. Blocks until the context is cancelled or Close is called.
//
// Must be called from exactly one goroutine. On a failed cycle the error
// is logged and the loop continues; the cache keeps the previous layout.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("controller starting", "cache_name", c.cacheName)

	for {
		cs, ok := c.queue.Drain()
		if ok {
			if err := c.ProcessChanges(ctx, cs); err != nil {
				slog.Error("change batch failed",
					"cache_name", c.cacheName,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("controller stopping: context cancelled", "cache_name", c.cacheName)
			c.queue.Close()
			return ctx.Err()

		case <-c.queue.Wait():
			// A stale token can fire here after Drain already consumed
			// the batch that produced it. Only a closed queue with
			// nothing pending ends the loop; otherwise drain again.
			if c.queue.Closed() && c.queue.Len() == 0 {
				slog.Info("controller stopping: queue closed", "cache_name", c.cacheName)
				return nil
			}
		}
	}
}

// Reset discards the cached layout for this configuration. Listeners are
// not notified; the next PerformFetch or notification cycle rebuilds from
// scratch.
func (c *Controller) Reset(ctx context.Context) error {
	empty := layout.Layout{}
	if err := c.cache.Store(ctx, c.cacheName, c.signature, empty); err != nil {
		return err
	}

	c.mu.Lock()
	c.current = empty
	c.paths = nil
	c.objects = nil
	c.fetched = false
	c.mu.Unlock()

	slog.Info("controller reset", "cache_name", c.cacheName)
	return nil
}

// Close unsubscribes from the query engine, detaches the cache name, and
// closes the cache. Idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	c.queue.Close()
	c.cache.Detach(c.cacheName)
	return c.cache.Close()
}

// onChangeSet is the subscription callback. It only enqueues; the diff
// cycle runs on the owning goroutine.
func (c *Controller) onChangeSet(cs fetch.ChangeSet) {
	if cs.Empty() {
		return
	}
	c.queue.Enqueue(cs)
}

// NumberOfSections returns the section count of the current layout, or
// zero before the first successful fetch.
func (c *Controller) NumberOfSections() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.current.Sections)
}

// NumberOfRows returns the row count of a section, or zero when the index
// is out of range or no fetch has happened.
func (c *Controller) NumberOfRows(section int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if section < 0 || section >= len(c.current.Sections) {
		return 0
	}
	return len(c.current.Sections[section].Rows)
}

// SectionTitle returns the section name for an index, or "" when out of
// range.
func (c *Controller) SectionTitle(section int) row.SectionKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if section < 0 || section >= len(c.current.Sections) {
		return ""
	}
	return c.current.Sections[section].Name
}

// RowAt returns the row identity at an index path.
func (c *Controller) RowAt(p row.IndexPath) (row.RowIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p.Section < 0 || p.Section >= len(c.current.Sections) {
		return row.RowIdentity{}, false
	}
	rows := c.current.Sections[p.Section].Rows
	if p.Row < 0 || p.Row >= len(rows) {
		return row.RowIdentity{}, false
	}
	return rows[p.Row], true
}

// ObjectAt returns the live object at an index path, as captured by the
// most recent fetch or cycle.
func (c *Controller) ObjectAt(p row.IndexPath) (fetch.Object, bool) {
	id, ok := c.RowAt(p)
	if !ok {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[id.ID]
	return obj, ok
}

// PathForID returns the index path of a row by stable key.
func (c *Controller) PathForID(id row.StableKey) (row.IndexPath, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[id]
	return p, ok
}

// PathForObject returns the index path of a live object's derived
// identity.
func (c *Controller) PathForObject(o fetch.Object) (row.IndexPath, bool) {
	return c.PathForID(o.Identity().ID)
}

// Fetched reports whether a successful fetch or cycle has happened.
func (c *Controller) Fetched() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// CacheName returns the bound cache name.
func (c *Controller) CacheName() string {
	return c.cacheName
}

func (c *Controller) currentLayout() layout.Layout {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// setCurrent replaces the read-accessor snapshot after a successful fetch
// or cycle.
func (c *Controller) setCurrent(l layout.Layout, objects []fetch.Object) {
	paths := make(map[row.StableKey]row.IndexPath, l.RowCount())
	for s, sec := range l.Sections {
		for r, id := range sec.Rows {
			paths[id.ID] = row.IndexPath{Section: s, Row: r}
		}
	}
	byID := make(map[row.StableKey]fetch.Object, len(objects))
	for _, o := range objects {
		byID[o.Identity().ID] = o
	}

	c.mu.Lock()
	c.current = l
	c.paths = paths
	c.objects = byID
	c.fetched = true
	c.mu.Unlock()
}
