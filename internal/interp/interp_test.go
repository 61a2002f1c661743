package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/events"
	"github.com/conneroisu/domwire/internal/handles"
	"github.com/conneroisu/domwire/internal/templates"
	"github.com/conneroisu/domwire/internal/wire"
)

// fixture wires a full interpreter around a fresh mount point.
type fixture struct {
	mount    *html.Node
	table    *handles.Table
	registry *templates.Registry
	bridge   *events.Bridge
	interp   *Interpreter
	buf      []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mount := dom.NewElement("div")
	table := handles.NewTable(mount)
	registry := templates.NewRegistry()
	bridge := events.NewBridge(table)
	return &fixture{
		mount:    mount,
		table:    table,
		registry: registry,
		bridge:   bridge,
		interp:   New(table, registry, bridge),
		buf:      make([]byte, 4096),
	}
}

// apply encodes the instructions the build function writes and executes them.
func (f *fixture) apply(t *testing.T, build func(w *wire.Writer)) error {
	t.Helper()
	w := wire.NewWriter(f.buf)
	build(w)
	w.End()
	require.NoError(t, w.Err())
	return f.interp.Apply(wire.NewReader(f.buf, 0, w.Offset()))
}

// nestedBlueprint is template 0: one root, div > span > dynamic-text.
func nestedBlueprint(t *testing.T) *wire.Blueprint {
	t.Helper()
	div, ok := wire.TagID("div")
	require.True(t, ok)
	span, ok := wire.TagID("span")
	require.True(t, ok)
	return &wire.Blueprint{
		ID:   0,
		Name: "nested",
		Nodes: []wire.BlueprintNode{
			{Kind: wire.BlueprintElement, Tag: div, Children: []uint16{1}},
			{Kind: wire.BlueprintElement, Tag: span, Children: []uint16{2}},
			{Kind: wire.BlueprintDynamicText, Slot: 0},
		},
		Roots: []uint16{0},
	}
}

// Register a template in-stream, instantiate it, address the inner text by
// path, fill it, and append under the mount point.
func TestTemplateMountAssignsHandles(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 0, 10)
		w.AssignID([]uint8{0, 0}, 11)
		w.SetText(11, "hi")
		w.AppendChildren(0, 1)
	})
	require.NoError(t, err)

	// Mount point gained one child: div > span > "hi".
	require.Equal(t, 1, dom.ChildCount(f.mount))
	div := f.mount.FirstChild
	assert.Equal(t, "div", div.Data)
	span := div.FirstChild
	require.NotNil(t, span)
	assert.Equal(t, "span", span.Data)
	assert.Equal(t, "hi", dom.Text(span))

	// Handle 10 resolves to the div, handle 11 to the inner text node.
	got, err := f.table.Resolve(10)
	require.NoError(t, err)
	assert.Same(t, div, got)
	got, err = f.table.Resolve(11)
	require.NoError(t, err)
	assert.Same(t, span.FirstChild, got)
	assert.Equal(t, html.TextNode, got.Type)
}

// SetAttribute works on elements and is a silent no-op on anything else.
func TestSetAttribute_ElementAndTextNode(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 0, 10)
		w.AssignID([]uint8{0, 0}, 11)
		w.AppendChildren(0, 1)
		w.SetAttribute(10, wire.NamespaceNone, "class", "active")
	})
	require.NoError(t, err)

	div, err := f.table.Resolve(10)
	require.NoError(t, err)
	cls, ok := dom.Attribute(div, "", "class")
	require.True(t, ok)
	assert.Equal(t, "active", cls)

	// The same call on a text-node handle raises no error and sets nothing.
	err = f.apply(t, func(w *wire.Writer) {
		w.SetAttribute(11, wire.NamespaceNone, "class", "active")
	})
	require.NoError(t, err)
	text, err := f.table.Resolve(11)
	require.NoError(t, err)
	assert.Empty(t, text.Attr)
}

func TestSetAttribute_UnrecognizedNamespaceFallsBack(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 0, 10)
		w.AppendChildren(0, 1)
		w.SetAttribute(10, wire.Namespace(9), "data-x", "y")
	})
	require.NoError(t, err)

	div, err := f.table.Resolve(10)
	require.NoError(t, err)
	got, ok := dom.Attribute(div, "", "data-x")
	require.True(t, ok)
	assert.Equal(t, "y", got)
}

// ReplaceWith removes the target, unbinds its handle, and the replacements
// take its position in original push order.
func TestReplaceWith_OrderAndUnbind(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 0, 10)
		w.AppendChildren(0, 1)
	})
	require.NoError(t, err)
	target, err := f.table.Resolve(10)
	require.NoError(t, err)

	err = f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(20, "first")
		w.CreateTextNode(21, "second")
		w.ReplaceWith(10, 2)
	})
	require.NoError(t, err)

	assert.Nil(t, target.Parent)
	_, err = f.table.Resolve(10)
	var uerr *handles.UnknownHandleError
	assert.ErrorAs(t, err, &uerr)

	require.Equal(t, 2, dom.ChildCount(f.mount))
	assert.Equal(t, "first", f.mount.FirstChild.Data)
	assert.Equal(t, "second", f.mount.LastChild.Data)
}

func TestReplaceWith_ZeroIsRemoval(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 0, 10)
		w.AppendChildren(0, 1)
		w.ReplaceWith(10, 0)
	})
	require.NoError(t, err)

	assert.Equal(t, 0, dom.ChildCount(f.mount))
	_, err = f.table.Resolve(10)
	assert.Error(t, err)
}

// ReplacePlaceholder pops only the replacements; the template root beneath
// them stays on the stack and anchors the path.
func TestReplacePlaceholder_PinnedRoot(t *testing.T) {
	f := newFixture(t)
	div, ok := wire.TagID("div")
	require.True(t, ok)
	bp := &wire.Blueprint{
		ID:   1,
		Name: "slotted",
		Nodes: []wire.BlueprintNode{
			{Kind: wire.BlueprintElement, Tag: div, Children: []uint16{1}},
			{Kind: wire.BlueprintDynamic, Slot: 0},
		},
		Roots: []uint16{0},
	}

	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(bp)
		w.LoadTemplate(1, 0, 10)            // stack: [templateRoot]
		w.CreateTextNode(11, "replacement") // stack: [templateRoot, replacement]
		w.ReplacePlaceholder([]uint8{0}, 1) // stack: [templateRoot]
		w.AppendChildren(0, 1)              // consumes the pinned root
	})
	require.NoError(t, err)

	require.Equal(t, 1, dom.ChildCount(f.mount))
	root := f.mount.FirstChild
	assert.Equal(t, "div", root.Data)
	require.Equal(t, 1, dom.ChildCount(root))
	child := root.FirstChild
	assert.Equal(t, html.TextNode, child.Type)
	assert.Equal(t, "replacement", child.Data)
	assert.False(t, dom.IsPlaceholder(child))
	assert.Equal(t, 0, f.interp.Depth())
}

func TestInsertAfterAndBefore(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "anchor")
		w.AppendChildren(0, 1)
		w.CreateTextNode(11, "after")
		w.InsertAfter(10, 1)
		w.CreateTextNode(12, "before")
		w.InsertBefore(10, 1)
	})
	require.NoError(t, err)

	require.Equal(t, 3, dom.ChildCount(f.mount))
	assert.Equal(t, "before", dom.ChildAt(f.mount, 0).Data)
	assert.Equal(t, "anchor", dom.ChildAt(f.mount, 1).Data)
	assert.Equal(t, "after", dom.ChildAt(f.mount, 2).Data)
}

func TestCreatePlaceholder(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreatePlaceholder(10)
		w.AppendChildren(0, 1)
	})
	require.NoError(t, err)

	node, err := f.table.Resolve(10)
	require.NoError(t, err)
	assert.True(t, dom.IsPlaceholder(node))
	assert.Same(t, f.mount, node.Parent)
}

func TestRemove_PurgesListeners(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "x")
		w.AppendChildren(0, 1)
		w.NewEventListener(10, "click", 5)
		w.Remove(10)
	})
	require.NoError(t, err)

	assert.Equal(t, 0, dom.ChildCount(f.mount))
	_, err = f.table.Resolve(10)
	assert.Error(t, err)
	_, ok := f.bridge.HandlerFor(10, "click")
	assert.False(t, ok)
}

func TestReplaceWith_PurgesListeners(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "x")
		w.AppendChildren(0, 1)
		w.NewEventListener(10, "click", 5)
		w.ReplaceWith(10, 0)
	})
	require.NoError(t, err)
	_, ok := f.bridge.HandlerFor(10, "click")
	assert.False(t, ok)
}

func TestStackUnderflow_StopsApplication(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "only one")
		w.AppendChildren(0, 2) // pops more than pushed
		w.CreateTextNode(11, "never executed")
	})
	require.Error(t, err)
	var serr *StackUnderflowError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Requested)
	assert.Equal(t, 1, serr.Depth)

	// No further instruction from the buffer was applied.
	_, err = f.table.Resolve(11)
	assert.Error(t, err)
	// And the partial application before the failure is not rolled back:
	// handle 10 was created and stays bound.
	_, err = f.table.Resolve(10)
	assert.NoError(t, err)
}

func TestAssignID_EmptyStackUnderflows(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.AssignID([]uint8{0}, 10)
	})
	var serr *StackUnderflowError
	require.ErrorAs(t, err, &serr)
}

func TestAssignID_DoesNotPop(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "top")
		w.AssignID(nil, 11) // empty path: the top node itself
		w.AppendChildren(0, 1)
	})
	require.NoError(t, err)

	a, err := f.table.Resolve(10)
	require.NoError(t, err)
	b, err := f.table.Resolve(11)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPushRoot_UnknownHandleFails(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.PushRoot(404)
	})
	var uerr *handles.UnknownHandleError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, uint32(404), uerr.Handle)
}

func TestLoadTemplate_UnregisteredFails(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.LoadTemplate(99, 0, 10)
	})
	var uerr *templates.UnknownTemplateError
	require.ErrorAs(t, err, &uerr)
}

func TestLoadTemplate_RootRangeFails(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 5, 10)
	})
	var rerr *templates.RootRangeError
	require.ErrorAs(t, err, &rerr)
}

func TestPathNavigation_OutOfBoundsFails(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.RegisterTemplate(nestedBlueprint(t))
		w.LoadTemplate(0, 0, 10)
		w.AssignID([]uint8{0, 7}, 11)
	})
	var perr *dom.PathError
	require.ErrorAs(t, err, &perr)
}

func TestRemove_RootHandleFails(t *testing.T) {
	f := newFixture(t)
	// A mount point hosted inside a larger document must stay attached even
	// when a stream asks to remove it.
	body := dom.NewElement("body")
	dom.Append(body, f.mount)

	err := f.apply(t, func(w *wire.Writer) {
		w.Remove(0)
	})
	require.ErrorIs(t, err, handles.ErrRootHandle)
	assert.Same(t, body, f.mount.Parent)
}

func TestReplaceWith_RootHandleFails(t *testing.T) {
	f := newFixture(t)
	body := dom.NewElement("body")
	dom.Append(body, f.mount)

	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "usurper")
		w.ReplaceWith(0, 1)
	})
	require.ErrorIs(t, err, handles.ErrRootHandle)

	// The mount stays in place and stays bound.
	assert.Same(t, body, f.mount.Parent)
	got, err := f.table.Resolve(handles.Root)
	require.NoError(t, err)
	assert.Same(t, f.mount, got)
}

func TestInsertRelativeToDetachedNodeFails(t *testing.T) {
	ops := []struct {
		name  string
		write func(w *wire.Writer)
	}{
		{"insert after", func(w *wire.Writer) { w.InsertAfter(10, 1) }},
		{"insert before", func(w *wire.Writer) { w.InsertBefore(10, 1) }},
		{"replace with", func(w *wire.Writer) { w.ReplaceWith(10, 1) }},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.apply(t, func(w *wire.Writer) {
				// Handle 10 is never attached anywhere: it has no sibling
				// list to insert into.
				w.CreateTextNode(10, "adrift")
				w.CreateTextNode(11, "incoming")
				op.write(w)
			})
			require.ErrorIs(t, err, dom.ErrDetached)
		})
	}
}

func TestErrors_CarryInstructionContext(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "x")
		w.AppendChildren(0, 1)
		w.PushRoot(404)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction 2")
	assert.Contains(t, err.Error(), "PushRoot")
}

func TestPushRoot_MovesExistingNode(t *testing.T) {
	f := newFixture(t)
	err := f.apply(t, func(w *wire.Writer) {
		w.CreateTextNode(10, "movable")
		w.AppendChildren(0, 1)
		w.CreateTextNode(11, "target")
		w.AppendChildren(0, 1)
		// Re-push the first node and append it again: it must move, not
		// duplicate.
		w.PushRoot(10)
		w.AppendChildren(0, 1)
	})
	require.NoError(t, err)

	require.Equal(t, 2, dom.ChildCount(f.mount))
	assert.Equal(t, "target", dom.ChildAt(f.mount, 0).Data)
	assert.Equal(t, "movable", dom.ChildAt(f.mount, 1).Data)
}
