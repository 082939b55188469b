package controller

import (
	"github.com/roach88/sectional/internal/diff"
)

// Listener callbacks are optional single-method interfaces. A registered
// listener may implement any subset; the controller type-asserts at
// delivery time and skips callbacks the listener does not implement.
//
// For one diff cycle the delivery order is: ContentWillChange to every
// listener, then each change event in order to every listener (section
// events before row events), then ContentDidChange to every listener. A
// cycle that produces zero events delivers nothing, not an empty pair.

// ContentWillChanger is notified before the first event of a cycle.
type ContentWillChanger interface {
	ContentWillChange()
}

// SectionChanger receives section-level events (SectionInsert,
// SectionDelete).
type SectionChanger interface {
	SectionChanged(event diff.ChangeEvent)
}

// RowChanger receives row-level events (RowInsert, RowDelete, RowMove,
// RowUpdate).
type RowChanger interface {
	RowChanged(event diff.ChangeEvent)
}

// ContentDidChanger is notified after the last event of a cycle.
type ContentDidChanger interface {
	ContentDidChange()
}

// registration pairs a handle with its listener, preserving registration
// order for deterministic delivery.
type registration struct {
	handle   Handle
	listener any
}

// AddListener registers a listener and returns its handle. The listener
// may implement any subset of the callback interfaces; registering a value
// that implements none of them is allowed but pointless.
func (c *Controller) AddListener(l any) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Handle(c.handleGen.Generate())
	c.listeners = append(c.listeners, registration{handle: h, listener: l})
	return h
}

// RemoveListener unregisters the listener for the handle. Unknown handles
// are ignored.
func (c *Controller) RemoveListener(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, reg := range c.listeners {
		if reg.handle == h {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// deliver replays one cycle's events to every registered listener.
// Called only from the owning goroutine; takes a snapshot of the listener
// list so callbacks may add or remove listeners without affecting the
// in-flight cycle.
func (c *Controller) deliver(events []diff.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	c.mu.RLock()
	regs := make([]registration, len(c.listeners))
	copy(regs, c.listeners)
	c.mu.RUnlock()

	if len(regs) == 0 {
		return
	}

	for _, reg := range regs {
		if l, ok := reg.listener.(ContentWillChanger); ok {
			l.ContentWillChange()
		}
	}

	for _, ev := range events {
		switch ev.(type) {
		case diff.SectionInsert, diff.SectionDelete:
			for _, reg := range regs {
				if l, ok := reg.listener.(SectionChanger); ok {
					l.SectionChanged(ev)
				}
			}
		default:
			for _, reg := range regs {
				if l, ok := reg.listener.(RowChanger); ok {
					l.RowChanged(ev)
				}
			}
		}
	}

	for _, reg := range regs {
		if l, ok := reg.listener.(ContentDidChanger); ok {
			l.ContentDidChange()
		}
	}
}
