// Package events bridges user interaction back to the producer. It keeps
// the per-(handle, event name) listener registry, resolves an interaction to
// the handler id the producer registered, calls the producer's dispatch
// function synchronously, and then runs the after-dispatch hook that drives
// the flush-and-reapply cycle.
package events

import (
	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/handles"
)

// DispatchFunc is the producer's plain event entry point.
type DispatchFunc func(handlerID uint32, event string) bool

// DispatchValueFunc is the producer's entry point for events that carry a
// value, such as input changes.
type DispatchValueFunc func(handlerID uint32, event string, value string) bool

// listener is one attached native listener. At most one exists per
// (handle, event name) pair; attaching a replacement detaches it first.
type listener struct {
	handlerID uint32
}

// Bridge owns the listener registry for one mounted runtime. All calls are
// synchronous and single-threaded; a dispatch cycle runs to completion
// before the next interaction is delivered.
type Bridge struct {
	table         *handles.Table
	listeners     map[uint32]map[string]*listener
	dispatch      DispatchFunc
	dispatchValue DispatchValueFunc
	afterDispatch func()
	delegated     bool
}

// NewBridge returns a bridge over the given handle table with no dispatch
// functions set; Fire is a no-op until SetDispatch is called.
func NewBridge(table *handles.Table) *Bridge {
	return &Bridge{
		table:     table,
		listeners: make(map[uint32]map[string]*listener),
	}
}

// SetDispatch installs the producer's dispatch entry points.
func (b *Bridge) SetDispatch(fn DispatchFunc, fnWithValue DispatchValueFunc) {
	b.dispatch = fn
	b.dispatchValue = fnWithValue
}

// OnAfterDispatch installs the hook run after every handled dispatch. The
// standard wiring asks the producer to flush and applies whatever mutation
// buffer comes back.
func (b *Bridge) OnAfterDispatch(callback func()) {
	b.afterDispatch = callback
}

// Install switches the bridge to delegated listening: an event fired at a
// node with no listener of its own walks up the ancestor chain to the
// nearest bound node that has one.
func (b *Bridge) Install() {
	b.delegated = true
}

// Uninstall switches the bridge back to per-node listening: only the exact
// target handle's listener can match.
func (b *Bridge) Uninstall() {
	b.delegated = false
}

// Attach registers a listener reporting handlerID for the (handle, event)
// pair, detaching any listener previously attached for that pair.
func (b *Bridge) Attach(handle uint32, event string, handlerID uint32) {
	byEvent, ok := b.listeners[handle]
	if !ok {
		byEvent = make(map[string]*listener)
		b.listeners[handle] = byEvent
	}
	// Replacing an existing entry is the detach: the old listener entry
	// becomes unreachable and can never match again.
	byEvent[event] = &listener{handlerID: handlerID}
}

// Detach removes the listener for the (handle, event) pair, if any.
func (b *Bridge) Detach(handle uint32, event string) {
	byEvent, ok := b.listeners[handle]
	if !ok {
		return
	}
	delete(byEvent, event)
	if len(byEvent) == 0 {
		delete(b.listeners, handle)
	}
}

// Purge removes every listener entry for a handle. Removal and replacement
// instructions call this so destroyed nodes leave nothing behind.
func (b *Bridge) Purge(handle uint32) {
	delete(b.listeners, handle)
}

// HandlerFor returns the handler id attached for the (handle, event) pair.
func (b *Bridge) HandlerFor(handle uint32, event string) (uint32, bool) {
	if byEvent, ok := b.listeners[handle]; ok {
		if l, ok := byEvent[event]; ok {
			return l.handlerID, true
		}
	}
	return 0, false
}

// Fire delivers an event aimed at a handle. It resolves the listener per
// the installed mode, calls the producer's dispatch function synchronously,
// and then runs the after-dispatch hook. The result reports whether a
// listener matched and the producer handled the event.
func (b *Bridge) Fire(handle uint32, event string) bool {
	return b.fire(handle, event, "", false)
}

// FireValue is Fire for events that carry a value.
func (b *Bridge) FireValue(handle uint32, event, value string) bool {
	return b.fire(handle, event, value, true)
}

func (b *Bridge) fire(handle uint32, event, value string, hasValue bool) bool {
	_, handlerID, ok := b.resolve(handle, event)
	if !ok {
		return false
	}

	handled := false
	if hasValue && b.dispatchValue != nil {
		handled = b.dispatchValue(handlerID, event, value)
	} else if b.dispatch != nil {
		handled = b.dispatch(handlerID, event)
	}
	if b.afterDispatch != nil {
		b.afterDispatch()
	}
	return handled
}

// resolve finds the listener for an event aimed at handle: the handle's own
// entry, or in delegated mode the nearest ancestor's entry for the same
// event name.
func (b *Bridge) resolve(handle uint32, event string) (uint32, uint32, bool) {
	if handlerID, ok := b.HandlerFor(handle, event); ok {
		return handle, handlerID, true
	}
	if !b.delegated {
		return 0, 0, false
	}
	node, err := b.table.Resolve(handle)
	if err != nil {
		return 0, 0, false
	}
	for ancestor := node.Parent; ancestor != nil; ancestor = ancestor.Parent {
		h, ok := b.handleOf(ancestor)
		if !ok {
			continue
		}
		if handlerID, ok := b.HandlerFor(h, event); ok {
			return h, handlerID, true
		}
	}
	return 0, 0, false
}

func (b *Bridge) handleOf(node *html.Node) (uint32, bool) {
	return b.table.HandleOf(node)
}
