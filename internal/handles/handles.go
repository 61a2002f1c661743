// Package handles maintains the bidirectional association between
// producer-assigned integer handles and live tree nodes.
//
// Handle values are chosen by the producer and may be sparse, so the table
// is a flat map rather than an index into a pre-sized arena. It owns no
// other state: a handle is a weak, non-owning name for a node, never an
// embedded reference.
package handles

import (
	"fmt"

	"golang.org/x/net/html"
)

// Root is the reserved handle pre-bound to the mount point before any
// instruction executes. It can never be rebound or removed.
const Root uint32 = 0

// UnknownHandleError is a fatal reference to a handle with no live binding.
type UnknownHandleError struct {
	Handle uint32
}

// Error implements the error interface.
func (e *UnknownHandleError) Error() string {
	return fmt.Sprintf("unknown node handle %d", e.Handle)
}

// ErrRootHandle is returned by operations that would rebind or remove the
// reserved mount-point handle.
var ErrRootHandle = fmt.Errorf("handle %d is reserved for the mount point", Root)

// Table maps handles to live nodes and back. One table belongs to exactly
// one interpreter instance; access is single-threaded by construction.
type Table struct {
	nodes   map[uint32]*html.Node
	handles map[*html.Node]uint32
}

// NewTable returns a table seeded with the reserved root handle bound to
// the mount point.
func NewTable(mount *html.Node) *Table {
	t := &Table{
		nodes:   make(map[uint32]*html.Node),
		handles: make(map[*html.Node]uint32),
	}
	t.nodes[Root] = mount
	t.handles[mount] = Root
	return t
}

// Bind associates a handle with a node. Rebinding a live handle replaces
// the old association; the producer reuses handle values after removals.
func (t *Table) Bind(handle uint32, node *html.Node) error {
	if handle == Root {
		return ErrRootHandle
	}
	if old, ok := t.nodes[handle]; ok {
		delete(t.handles, old)
	}
	t.nodes[handle] = node
	t.handles[node] = handle
	return nil
}

// Resolve returns the node bound to a handle.
func (t *Table) Resolve(handle uint32) (*html.Node, error) {
	node, ok := t.nodes[handle]
	if !ok {
		return nil, &UnknownHandleError{Handle: handle}
	}
	return node, nil
}

// Unbind removes a handle's association. Unbinding an unknown handle is a
// no-op; unbinding the root handle is an error.
func (t *Table) Unbind(handle uint32) error {
	if handle == Root {
		return ErrRootHandle
	}
	if node, ok := t.nodes[handle]; ok {
		delete(t.handles, node)
		delete(t.nodes, handle)
	}
	return nil
}

// HandleOf returns the handle bound to a node, walking no further than the
// node itself. The second result is false for unbound nodes.
func (t *Table) HandleOf(node *html.Node) (uint32, bool) {
	handle, ok := t.handles[node]
	return handle, ok
}

// Len returns the number of live bindings, including the root.
func (t *Table) Len() int {
	return len(t.nodes)
}
