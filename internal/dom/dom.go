// Package dom provides the live document tree substrate for the mutation
// runtime: construction, deep cloning, sibling-order insertion, path
// navigation, and namespaced attribute assignment over x/net/html nodes.
//
// Node identity matters throughout the runtime: a *html.Node pointer is a
// live tree position, never a value, so every helper that moves a node
// detaches it from its current parent first.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// placeholderData is the comment body used for invisible marker nodes. The
// value is only a debugging aid; placeholder identity is the comment node
// type itself.
const placeholderData = "dw-placeholder"

// NewElement returns a detached element node for the given tag.
func NewElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// NewText returns a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// NewPlaceholder returns a detached invisible marker node. Placeholders are
// comment nodes so they occupy a sibling position without rendering, which
// keeps them discoverable by path navigation and individually replaceable.
func NewPlaceholder() *html.Node {
	return &html.Node{Type: html.CommentNode, Data: placeholderData}
}

// IsPlaceholder reports whether the node is an invisible marker node.
func IsPlaceholder(n *html.Node) bool {
	return n != nil && n.Type == html.CommentNode
}

// Clone returns a deep copy of the subtree rooted at n. The copy shares no
// nodes with the original, so mutating one never aliases the other.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// Detach removes n from its parent, if it has one. Detaching an already
// detached node is a no-op.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Append detaches each node and appends it as the last child of parent, in
// the order given.
func Append(parent *html.Node, nodes ...*html.Node) {
	for _, n := range nodes {
		Detach(n)
		parent.AppendChild(n)
	}
}

// InsertBefore detaches each node and inserts it among ref's siblings so
// the group sits, in the order given, immediately before ref. A ref with no
// parent has no sibling list to insert into; that is ErrDetached.
func InsertBefore(ref *html.Node, nodes ...*html.Node) error {
	parent := ref.Parent
	if parent == nil {
		return ErrDetached
	}
	for _, n := range nodes {
		Detach(n)
		parent.InsertBefore(n, ref)
	}
	return nil
}

// InsertAfter detaches each node and inserts it among ref's siblings so the
// group sits, in the order given, immediately after ref.
func InsertAfter(ref *html.Node, nodes ...*html.Node) error {
	parent := ref.Parent
	if parent == nil {
		return ErrDetached
	}
	next := ref.NextSibling
	for _, n := range nodes {
		Detach(n)
		// InsertBefore with a nil reference appends.
		parent.InsertBefore(n, next)
	}
	return nil
}

// Replace swaps ref for the given nodes at its position among its siblings
// and detaches ref. With no replacement nodes, ref is simply removed, even
// when it is already detached.
func Replace(ref *html.Node, nodes ...*html.Node) error {
	if len(nodes) > 0 {
		if err := InsertBefore(ref, nodes...); err != nil {
			return err
		}
	}
	Detach(ref)
	return nil
}

// ChildAt returns the index-th child of n, counting every node kind.
func ChildAt(n *html.Node, index int) *html.Node {
	child := n.FirstChild
	for i := 0; child != nil && i < index; i++ {
		child = child.NextSibling
	}
	return child
}

// ChildCount returns the number of children of n, counting every node kind.
func ChildCount(n *html.Node) int {
	count := 0
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		count++
	}
	return count
}

// Navigate walks a child-index path from n and returns the node reached. A
// step beyond a node's child count is a *PathError.
func Navigate(n *html.Node, path []uint8) (*html.Node, error) {
	current := n
	for step, index := range path {
		child := ChildAt(current, int(index))
		if child == nil {
			return nil, &PathError{Step: step, Index: int(index), Children: ChildCount(current)}
		}
		current = child
	}
	return current, nil
}

// SetText replaces the full text content of n: for a text or comment node
// the data itself, for an element all children with a single text node.
func SetText(n *html.Node, text string) {
	switch n.Type {
	case html.TextNode, html.CommentNode:
		n.Data = text
	default:
		for n.FirstChild != nil {
			n.RemoveChild(n.FirstChild)
		}
		n.AppendChild(NewText(text))
	}
}

// Text returns the concatenated text content of the subtree rooted at n.
func Text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(Text(child))
	}
	return sb.String()
}

// SetAttribute sets or replaces the (namespace, name) attribute on n. The
// caller is responsible for only passing element nodes.
func SetAttribute(n *html.Node, namespace, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == namespace && n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Namespace: namespace, Key: name, Val: value})
}

// Attribute returns the value of the (namespace, name) attribute on n.
func Attribute(n *html.Node, namespace, name string) (string, bool) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == namespace && n.Attr[i].Key == name {
			return n.Attr[i].Val, true
		}
	}
	return "", false
}

// ParseFragment parses markup into detached root nodes, as they would
// appear in a body context.
func ParseFragment(markup string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	roots, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parsing markup fragment: %w", err)
	}
	for _, root := range roots {
		Detach(root)
	}
	return roots, nil
}

// RenderString serializes the subtree rooted at n to HTML.
func RenderString(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", fmt.Errorf("rendering node: %w", err)
	}
	return sb.String(), nil
}

// RenderChildren serializes the children of n to HTML, in order. This is
// the document a mount point presents: the mount element itself is host
// chrome, not producer content.
func RenderChildren(n *html.Node) (string, error) {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&sb, child); err != nil {
			return "", fmt.Errorf("rendering child: %w", err)
		}
	}
	return sb.String(), nil
}
