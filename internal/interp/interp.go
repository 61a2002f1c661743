// Package interp executes decoded mutation instructions against the live
// tree. It is a small stack machine: node-producing instructions push live
// nodes, structural instructions pop them into place, and everything else
// mutates through the handle table.
//
// Failures are fatal to the in-progress buffer application and carry the
// instruction index and byte offset for diagnosis. Mutations applied before
// the failure are not rolled back.
package interp

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/events"
	"github.com/conneroisu/domwire/internal/handles"
	"github.com/conneroisu/domwire/internal/templates"
	"github.com/conneroisu/domwire/internal/wire"
)

// StackUnderflowError is a fatal protocol violation: an instruction asked
// for more operands than the stack holds.
type StackUnderflowError struct {
	Requested int
	Depth     int
}

// Error implements the error interface.
func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("operand stack underflow: need %d nodes, have %d", e.Requested, e.Depth)
}

// Interpreter applies instruction streams to the live tree owned by one
// mount point. It is single-threaded by construction: one Apply call runs
// to completion (or to a fatal error) before the next begins.
type Interpreter struct {
	stack     []*html.Node
	handles   *handles.Table
	templates *templates.Registry
	bridge    *events.Bridge
}

// New returns an interpreter over the given handle table, template
// registry, and event bridge.
func New(table *handles.Table, registry *templates.Registry, bridge *events.Bridge) *Interpreter {
	return &Interpreter{
		handles:   table,
		templates: registry,
		bridge:    bridge,
	}
}

// Apply decodes and executes instructions from the reader until an End
// record or a fatal error. The operand stack starts empty for each
// application; the producer's stack discipline guarantees it also ends
// empty on a well-formed stream.
func (it *Interpreter) Apply(r *wire.Reader) error {
	it.stack = it.stack[:0]
	for index := 0; ; index++ {
		in, err := r.Next()
		if err != nil {
			return fmt.Errorf("instruction %d: %w", index, err)
		}
		if in.Op == wire.OpEnd {
			return nil
		}
		if err := it.execute(&in); err != nil {
			return fmt.Errorf("instruction %d (%s) at byte %d: %w", index, in.Op, in.Offset, err)
		}
	}
}

func (it *Interpreter) execute(in *wire.Instruction) error {
	switch in.Op {
	case wire.OpPushRoot:
		node, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		it.push(node)
		return nil

	case wire.OpLoadTemplate:
		node, err := it.templates.Instantiate(in.Template, in.RootIndex)
		if err != nil {
			return err
		}
		if err := it.handles.Bind(in.Handle, node); err != nil {
			return err
		}
		it.push(node)
		return nil

	case wire.OpCreateTextNode:
		node := dom.NewText(in.Value)
		if err := it.handles.Bind(in.Handle, node); err != nil {
			return err
		}
		it.push(node)
		return nil

	case wire.OpCreatePlaceholder:
		node := dom.NewPlaceholder()
		if err := it.handles.Bind(in.Handle, node); err != nil {
			return err
		}
		it.push(node)
		return nil

	case wire.OpAssignID:
		top, err := it.top()
		if err != nil {
			return err
		}
		node, err := dom.Navigate(top, in.Path)
		if err != nil {
			return err
		}
		return it.handles.Bind(in.Handle, node)

	case wire.OpAppendChildren:
		nodes, err := it.pop(int(in.Count))
		if err != nil {
			return err
		}
		parent, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		dom.Append(parent, nodes...)
		return nil

	case wire.OpInsertAfter:
		nodes, err := it.pop(int(in.Count))
		if err != nil {
			return err
		}
		ref, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		return dom.InsertAfter(ref, nodes...)

	case wire.OpInsertBefore:
		nodes, err := it.pop(int(in.Count))
		if err != nil {
			return err
		}
		ref, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		return dom.InsertBefore(ref, nodes...)

	case wire.OpReplaceWith:
		// The mount root may never be replaced; reject before any pop or
		// mutation commits.
		if in.Handle == handles.Root {
			return handles.ErrRootHandle
		}
		nodes, err := it.pop(int(in.Count))
		if err != nil {
			return err
		}
		ref, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		if err := dom.Replace(ref, nodes...); err != nil {
			return err
		}
		if err := it.handles.Unbind(in.Handle); err != nil {
			return err
		}
		it.bridge.Purge(in.Handle)
		return nil

	case wire.OpReplacePlaceholder:
		// The replacement nodes sit above the template root; the root stays
		// on the stack and anchors the path.
		nodes, err := it.pop(int(in.Count))
		if err != nil {
			return err
		}
		root, err := it.top()
		if err != nil {
			return err
		}
		target, err := dom.Navigate(root, in.Path)
		if err != nil {
			return err
		}
		return dom.Replace(target, nodes...)

	case wire.OpSetAttribute:
		node, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		// Attribute assignment on a non-element is a silent no-op.
		if node.Type != html.ElementNode {
			return nil
		}
		dom.SetAttribute(node, in.Ns.URL(), in.Name, in.Value)
		return nil

	case wire.OpSetText:
		node, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		dom.SetText(node, in.Value)
		return nil

	case wire.OpNewEventListener:
		if _, err := it.handles.Resolve(in.Handle); err != nil {
			return err
		}
		it.bridge.Attach(in.Handle, in.Name, in.HandlerID)
		return nil

	case wire.OpRemoveEventListener:
		it.bridge.Detach(in.Handle, in.Name)
		return nil

	case wire.OpRemove:
		// The mount root may never be removed; reject before detaching.
		if in.Handle == handles.Root {
			return handles.ErrRootHandle
		}
		node, err := it.handles.Resolve(in.Handle)
		if err != nil {
			return err
		}
		dom.Detach(node)
		if err := it.handles.Unbind(in.Handle); err != nil {
			return err
		}
		it.bridge.Purge(in.Handle)
		return nil

	case wire.OpRegisterTemplate:
		return it.templates.RegisterBlueprint(in.Blueprint)

	default:
		return fmt.Errorf("unhandled opcode %s", in.Op)
	}
}

// push puts a node on the operand stack.
func (it *Interpreter) push(node *html.Node) {
	it.stack = append(it.stack, node)
}

// pop removes the top n nodes and returns them in original push order.
func (it *Interpreter) pop(n int) ([]*html.Node, error) {
	if n > len(it.stack) {
		return nil, &StackUnderflowError{Requested: n, Depth: len(it.stack)}
	}
	nodes := make([]*html.Node, n)
	copy(nodes, it.stack[len(it.stack)-n:])
	it.stack = it.stack[:len(it.stack)-n]
	return nodes, nil
}

// top returns the current top of stack without popping.
func (it *Interpreter) top() (*html.Node, error) {
	if len(it.stack) == 0 {
		return nil, &StackUnderflowError{Requested: 1, Depth: 0}
	}
	return it.stack[len(it.stack)-1], nil
}

// Depth returns the current operand stack depth.
func (it *Interpreter) Depth() int {
	return len(it.stack)
}
