// Package templates stores reusable subtree blueprints and instantiates
// them by deep cloning, so no instantiation ever aliases document state.
//
// Three registration paths are peers: pre-built live fragments, a markup
// string, and the fully self-describing blueprint records a producer can
// embed in the instruction stream itself. Registered templates are
// immutable for the life of the runtime.
package templates

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/wire"
)

// UnknownTemplateError is a fatal lookup of an unregistered template id.
type UnknownTemplateError struct {
	ID uint32
}

// Error implements the error interface.
func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %d", e.ID)
}

// RootRangeError is a fatal instantiation with a root index at or beyond
// the registered root count.
type RootRangeError struct {
	ID    uint32
	Index uint16
	Roots int
}

// Error implements the error interface.
func (e *RootRangeError) Error() string {
	return fmt.Sprintf("template %d root index %d out of range: %d roots registered", e.ID, e.Index, e.Roots)
}

// Template is a registered blueprint: an ordered list of detached root
// subtrees, cloned out on every instantiation.
type Template struct {
	ID    uint32
	Name  string
	roots []*html.Node
}

// RootCount returns the number of registered roots.
func (t *Template) RootCount() int {
	return len(t.roots)
}

// Registry holds all registered templates for one runtime.
type Registry struct {
	templates map[uint32]*Template
	mutex     sync.RWMutex
}

// NewRegistry returns an empty template registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[uint32]*Template)}
}

// RegisterFragments registers already-built live fragments under an id. The
// fragments are deep-cloned on registration, so the caller's originals stay
// mutable and independent.
func (r *Registry) RegisterFragments(id uint32, name string, roots ...*html.Node) {
	cloned := make([]*html.Node, len(roots))
	for i, root := range roots {
		cloned[i] = dom.Clone(root)
	}
	r.put(&Template{ID: id, Name: name, roots: cloned})
}

// RegisterMarkup parses a markup string and registers its top-level nodes
// as template roots.
func (r *Registry) RegisterMarkup(id uint32, name, markup string) error {
	roots, err := dom.ParseFragment(markup)
	if err != nil {
		return fmt.Errorf("registering template %d from markup: %w", id, err)
	}
	r.put(&Template{ID: id, Name: name, roots: roots})
	return nil
}

// RegisterBlueprint materializes a self-describing blueprint record into
// template roots. Dynamic node slots become invisible placeholder nodes and
// dynamic text slots become empty text nodes, so both stay discoverable by
// path navigation and individually replaceable.
func (r *Registry) RegisterBlueprint(bp *wire.Blueprint) error {
	b := blueprintBuilder{bp: bp, building: make(map[uint16]bool)}
	roots := make([]*html.Node, len(bp.Roots))
	for i, rootIndex := range bp.Roots {
		root, err := b.node(rootIndex)
		if err != nil {
			return fmt.Errorf("registering template %d: %w", bp.ID, err)
		}
		roots[i] = root
	}
	r.put(&Template{ID: bp.ID, Name: bp.Name, roots: roots})
	return nil
}

// Instantiate returns a fresh deep clone of the template's rootIndex-th
// root, never the stored original.
func (r *Registry) Instantiate(id uint32, rootIndex uint16) (*html.Node, error) {
	r.mutex.RLock()
	t, ok := r.templates[id]
	r.mutex.RUnlock()
	if !ok {
		return nil, &UnknownTemplateError{ID: id}
	}
	if int(rootIndex) >= len(t.roots) {
		return nil, &RootRangeError{ID: id, Index: rootIndex, Roots: len(t.roots)}
	}
	return dom.Clone(t.roots[rootIndex]), nil
}

// Get returns a registered template's metadata.
func (r *Registry) Get(id uint32) (*Template, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.templates)
}

func (r *Registry) put(t *Template) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.templates[t.ID] = t
}

// blueprintBuilder rebuilds live nodes from a blueprint's node and
// attribute tables. The building set rejects cyclic child references, which
// a well-formed producer never emits.
type blueprintBuilder struct {
	bp       *wire.Blueprint
	building map[uint16]bool
}

func (b *blueprintBuilder) node(index uint16) (*html.Node, error) {
	if int(index) >= len(b.bp.Nodes) {
		return nil, fmt.Errorf("node index %d out of range: %d nodes in table", index, len(b.bp.Nodes))
	}
	if b.building[index] {
		return nil, fmt.Errorf("node table cycle through index %d", index)
	}
	record := &b.bp.Nodes[index]
	switch record.Kind {
	case wire.BlueprintElement:
		return b.element(index, record)
	case wire.BlueprintText:
		return dom.NewText(record.Text), nil
	case wire.BlueprintDynamic:
		return dom.NewPlaceholder(), nil
	case wire.BlueprintDynamicText:
		return dom.NewText(""), nil
	default:
		return nil, fmt.Errorf("node index %d has unrecognized kind %d", index, record.Kind)
	}
}

func (b *blueprintBuilder) element(index uint16, record *wire.BlueprintNode) (*html.Node, error) {
	tag, ok := wire.TagName(record.Tag)
	if !ok {
		return nil, fmt.Errorf("node index %d has unknown tag id %d", index, record.Tag)
	}
	n := dom.NewElement(tag)

	first, count := int(record.FirstAttr), int(record.AttrCount)
	if first+count > len(b.bp.Attrs) {
		return nil, fmt.Errorf("node index %d attribute range [%d,%d) out of range: %d attributes in table",
			index, first, first+count, len(b.bp.Attrs))
	}
	for _, attr := range b.bp.Attrs[first : first+count] {
		// Dynamic attributes have no registration-time value; the producer
		// assigns them per instance via SetAttribute instructions.
		if attr.Kind == wire.BlueprintAttrStatic {
			dom.SetAttribute(n, "", attr.Name, attr.Value)
		}
	}

	b.building[index] = true
	defer delete(b.building, index)
	for _, childIndex := range record.Children {
		child, err := b.node(childIndex)
		if err != nil {
			return nil, err
		}
		n.AppendChild(child)
	}
	return n, nil
}
