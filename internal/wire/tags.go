package wire

// The tag catalog assigns a stable one-byte id to each element tag a
// blueprint node may carry. Both sides of the protocol compile the same
// ordered list; ids are positions in it and must never be reordered, only
// appended to.
var tagNames = []string{
	"div", "span", "p", "a", "button", "input", "textarea", "select",
	"option", "label", "form", "img", "ul", "ol", "li", "table", "thead",
	"tbody", "tfoot", "tr", "td", "th", "h1", "h2", "h3", "h4", "h5", "h6",
	"header", "footer", "nav", "section", "article", "aside", "main", "pre",
	"code", "br", "hr", "strong", "em", "small", "b", "i", "u", "sub", "sup",
	"blockquote", "figure", "figcaption", "canvas", "video", "audio",
	"source", "iframe", "details", "summary", "dialog", "fieldset", "legend",
	"progress", "meter", "datalist", "output", "template", "slot",
}

var tagIDs = func() map[string]uint8 {
	m := make(map[string]uint8, len(tagNames))
	for i, name := range tagNames {
		m[name] = uint8(i)
	}
	return m
}()

// TagName resolves a blueprint tag id to its element name.
func TagName(id uint8) (string, bool) {
	if int(id) >= len(tagNames) {
		return "", false
	}
	return tagNames[id], true
}

// TagID resolves an element name to its blueprint tag id.
func TagID(name string) (uint8, bool) {
	id, ok := tagIDs[name]
	return id, ok
}
