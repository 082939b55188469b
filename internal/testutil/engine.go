// Package testutil provides deterministic test doubles shared across
// packages: a scripted query engine and identity-bearing objects with
// hand-set sort values and digests.
package testutil

import (
	"context"
	"sync"

	"github.com/roach88/sectional/internal/fetch"
	"github.com/roach88/sectional/internal/row"
)

// Object is a minimal fetch.Object whose identity is set directly by the
// test.
type Object struct {
	Ident row.RowIdentity
}

// Identity implements fetch.Object.
func (o Object) Identity() row.RowIdentity {
	return o.Ident
}

// Obj builds a sectioned object. The digest defaults to "d0"; use
// WithDigest to simulate a tracked-attribute change.
func Obj(id string, section string, sortValues ...row.SortValue) Object {
	return Object{Ident: row.RowIdentity{
		ID:         row.StableKey(id),
		HasSection: section != "",
		Section:    row.SectionKey(section),
		SortValues: sortValues,
		AttrDigest: "d0",
	}}
}

// FlatObj builds an object for ungrouped requests (no section key).
func FlatObj(id string, sortValues ...row.SortValue) Object {
	return Obj(id, "", sortValues...)
}

// WithDigest returns a copy of the object with a different
// tracked-attribute digest.
func (o Object) WithDigest(digest string) Object {
	o.Ident.AttrDigest = digest
	return o
}

// ScriptedEngine is a fetch.Engine double. Tests stage the next Execute
// result with SetResult and push notification batches with Notify.
//
// Thread-safe; notification callbacks run synchronously on the caller of
// Notify.
type ScriptedEngine struct {
	mu      sync.Mutex
	result  []fetch.Object
	execErr error
	subs    []*scriptedSub
	execs   int
}

type scriptedSub struct {
	engine *ScriptedEngine
	fn     func(fetch.ChangeSet)
	once   sync.Once
}

// Unsubscribe implements fetch.Subscription. Idempotent.
func (s *scriptedSub) Unsubscribe() {
	s.once.Do(func() {
		s.engine.mu.Lock()
		defer s.engine.mu.Unlock()
		for i, sub := range s.engine.subs {
			if sub == s {
				s.engine.subs = append(s.engine.subs[:i], s.engine.subs[i+1:]...)
				return
			}
		}
	})
}

// NewScriptedEngine creates an engine with an empty staged result.
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{}
}

// SetResult stages the objects the next Execute calls will return.
func (e *ScriptedEngine) SetResult(objs ...fetch.Object) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = objs
	e.execErr = nil
}

// FailWith makes subsequent Execute calls fail with err.
func (e *ScriptedEngine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.execErr = err
}

// Execute implements fetch.Engine.
func (e *ScriptedEngine) Execute(_ context.Context, _ fetch.Request) ([]fetch.Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.execs++
	if e.execErr != nil {
		return nil, e.execErr
	}
	out := make([]fetch.Object, len(e.result))
	copy(out, e.result)
	return out, nil
}

// Subscribe implements fetch.Engine.
func (e *ScriptedEngine) Subscribe(_ fetch.Request, fn func(fetch.ChangeSet)) (fetch.Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &scriptedSub{engine: e, fn: fn}
	e.subs = append(e.subs, sub)
	return sub, nil
}

// Notify delivers a change batch to every live subscriber.
func (e *ScriptedEngine) Notify(cs fetch.ChangeSet) {
	e.mu.Lock()
	fns := make([]func(fetch.ChangeSet), 0, len(e.subs))
	for _, s := range e.subs {
		fns = append(fns, s.fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(cs)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (e *ScriptedEngine) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// ExecuteCount returns how many times Execute has been called.
func (e *ScriptedEngine) ExecuteCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execs
}
