package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/wire"
)

func mustTagID(t *testing.T, name string) uint8 {
	t.Helper()
	id, ok := wire.TagID(name)
	require.True(t, ok, "tag %q not in catalog", name)
	return id
}

func TestRegisterFragments_ClonesOnRegistration(t *testing.T) {
	registry := NewRegistry()

	original := dom.NewElement("div")
	original.AppendChild(dom.NewText("before"))
	registry.RegisterFragments(1, "frag", original)

	// Mutating the caller's original after registration must not leak into
	// instantiations.
	dom.SetText(original, "mutated")

	instance, err := registry.Instantiate(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "before", dom.Text(instance))
}

func TestInstantiate_CloneIsolation(t *testing.T) {
	registry := NewRegistry()
	root := dom.NewElement("div")
	root.AppendChild(dom.NewText("shared"))
	registry.RegisterFragments(2, "twice", root)

	first, err := registry.Instantiate(2, 0)
	require.NoError(t, err)
	second, err := registry.Instantiate(2, 0)
	require.NoError(t, err)

	// Structurally equal, reference-distinct.
	a, err := dom.RenderString(first)
	require.NoError(t, err)
	b, err := dom.RenderString(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotSame(t, first, second)

	dom.SetText(first, "changed")
	assert.Equal(t, "shared", dom.Text(second))
}

func TestRegisterMarkup(t *testing.T) {
	registry := NewRegistry()
	err := registry.RegisterMarkup(3, "markup", `<ul class="menu"><li>one</li><li>two</li></ul>`)
	require.NoError(t, err)

	instance, err := registry.Instantiate(3, 0)
	require.NoError(t, err)
	assert.Equal(t, "ul", instance.Data)
	cls, _ := dom.Attribute(instance, "", "class")
	assert.Equal(t, "menu", cls)
	assert.Equal(t, 2, dom.ChildCount(instance))
}

func TestRegisterMarkup_MultipleRoots(t *testing.T) {
	registry := NewRegistry()
	err := registry.RegisterMarkup(4, "pair", `<div>a</div><div>b</div>`)
	require.NoError(t, err)

	tpl, ok := registry.Get(4)
	require.True(t, ok)
	assert.Equal(t, 2, tpl.RootCount())

	second, err := registry.Instantiate(4, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", dom.Text(second))
}

func TestRegisterBlueprint(t *testing.T) {
	registry := NewRegistry()
	bp := &wire.Blueprint{
		ID:   5,
		Name: "card",
		Nodes: []wire.BlueprintNode{
			{Kind: wire.BlueprintElement, Tag: mustTagID(t, "div"), Children: []uint16{1, 2, 3}, FirstAttr: 0, AttrCount: 2},
			{Kind: wire.BlueprintText, Text: "title"},
			{Kind: wire.BlueprintDynamic, Slot: 0},
			{Kind: wire.BlueprintDynamicText, Slot: 1},
		},
		Attrs: []wire.BlueprintAttr{
			{Kind: wire.BlueprintAttrStatic, Name: "class", Value: "card"},
			{Kind: wire.BlueprintAttrDynamic, Slot: 2},
		},
		Roots: []uint16{0},
	}
	require.NoError(t, registry.RegisterBlueprint(bp))

	instance, err := registry.Instantiate(5, 0)
	require.NoError(t, err)

	assert.Equal(t, "div", instance.Data)
	cls, ok := dom.Attribute(instance, "", "class")
	require.True(t, ok)
	assert.Equal(t, "card", cls)
	// The dynamic attribute has no registration-time value.
	assert.Len(t, instance.Attr, 1)

	// Static text, then a placeholder for the dynamic node slot, then an
	// empty text node for the dynamic text slot: all three individually
	// addressable by path.
	require.Equal(t, 3, dom.ChildCount(instance))
	first := dom.ChildAt(instance, 0)
	assert.Equal(t, html.TextNode, first.Type)
	assert.Equal(t, "title", first.Data)

	second := dom.ChildAt(instance, 1)
	assert.True(t, dom.IsPlaceholder(second))

	third := dom.ChildAt(instance, 2)
	assert.Equal(t, html.TextNode, third.Type)
	assert.Equal(t, "", third.Data)
}

func TestRegisterBlueprint_BadTagID(t *testing.T) {
	registry := NewRegistry()
	bp := &wire.Blueprint{
		ID:    6,
		Nodes: []wire.BlueprintNode{{Kind: wire.BlueprintElement, Tag: 0xFF}},
		Roots: []uint16{0},
	}
	err := registry.RegisterBlueprint(bp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tag id")
}

func TestRegisterBlueprint_NodeIndexOutOfRange(t *testing.T) {
	registry := NewRegistry()
	bp := &wire.Blueprint{
		ID:    7,
		Nodes: []wire.BlueprintNode{{Kind: wire.BlueprintElement, Tag: mustTagID(t, "div"), Children: []uint16{9}}},
		Roots: []uint16{0},
	}
	err := registry.RegisterBlueprint(bp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestRegisterBlueprint_AttrRangeOutOfRange(t *testing.T) {
	registry := NewRegistry()
	bp := &wire.Blueprint{
		ID:    8,
		Nodes: []wire.BlueprintNode{{Kind: wire.BlueprintElement, Tag: mustTagID(t, "div"), FirstAttr: 0, AttrCount: 3}},
		Roots: []uint16{0},
	}
	err := registry.RegisterBlueprint(bp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attribute range")
}

func TestRegisterBlueprint_RejectsCycle(t *testing.T) {
	registry := NewRegistry()
	bp := &wire.Blueprint{
		ID: 9,
		Nodes: []wire.BlueprintNode{
			{Kind: wire.BlueprintElement, Tag: mustTagID(t, "div"), Children: []uint16{0}},
		},
		Roots: []uint16{0},
	}
	err := registry.RegisterBlueprint(bp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestInstantiate_UnknownTemplate(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Instantiate(99, 0)
	var uerr *UnknownTemplateError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, uint32(99), uerr.ID)
}

func TestInstantiate_RootIndexOutOfRange(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFragments(1, "single", dom.NewElement("div"))

	_, err := registry.Instantiate(1, 1)
	var rerr *RootRangeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, uint32(1), rerr.ID)
	assert.Equal(t, uint16(1), rerr.Index)
	assert.Equal(t, 1, rerr.Roots)
}
