package server

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/handles"
	"github.com/conneroisu/domwire/internal/runtime"
)

// handleAttr is the attribute the browser script uses to name the target
// when it reports an event back over the WebSocket.
const handleAttr = "data-dw-handle"

// annotatedHTML renders the mounted document with every handle-bound
// element tagged with its handle. The annotation happens on a parallel
// copy so the live tree never carries serving artifacts.
func annotatedHTML(rt *runtime.Runtime) (string, error) {
	table := rt.Handles()
	mount := rt.Mountpoint()

	var sb strings.Builder
	for child := mount.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&sb, annotate(child, table)); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func annotate(n *html.Node, table *handles.Table) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if n.Type == html.ElementNode {
		if h, ok := table.HandleOf(n); ok {
			c.Attr = append(c.Attr, html.Attribute{
				Key: handleAttr,
				Val: strconv.FormatUint(uint64(h), 10),
			})
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(annotate(child, table))
	}
	return c
}
