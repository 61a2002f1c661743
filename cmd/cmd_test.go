package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/domwire/internal/wire"
)

func TestParseTemplateFilename(t *testing.T) {
	tests := []struct {
		base    string
		id      uint32
		name    string
		wantErr bool
	}{
		{base: "0-counter.html", id: 0, name: "counter"},
		{base: "12-item-row.html", id: 12, name: "item-row"},
		{base: "counter.html", wantErr: true},
		{base: "x-counter.html", wantErr: true},
		{base: "7-.html", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			id, name, err := parseTemplateFilename(tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestNewProducer(t *testing.T) {
	for _, app := range []string{"counter", "list", "benchmark"} {
		p, err := newProducer(app)
		require.NoError(t, err)
		assert.NotNil(t, p)
	}

	_, err := newProducer("nope")
	assert.ErrorContains(t, err, "unknown app")
}

func TestDumpStream(t *testing.T) {
	div, _ := wire.TagID("div")
	buf := make([]byte, 1024)
	w := wire.NewWriter(buf)
	w.RegisterTemplate(&wire.Blueprint{
		ID:   7,
		Name: "card",
		Nodes: []wire.BlueprintNode{
			{Kind: wire.BlueprintElement, Tag: div, Children: []uint16{1}, AttrCount: 1},
			{Kind: wire.BlueprintDynamicText, Slot: 0},
		},
		Attrs: []wire.BlueprintAttr{
			{Kind: wire.BlueprintAttrStatic, Name: "class", Value: "card"},
		},
		Roots: []uint16{0},
	})
	w.LoadTemplate(7, 0, 1)
	w.SetAttribute(1, wire.NamespaceXLink, "href", "#top")
	w.SetText(1, "hello")
	w.AppendChildren(0, 1)
	w.End()
	require.NoError(t, w.Err())

	var sb strings.Builder
	require.NoError(t, dumpStream(&sb, buf[:w.Offset()]))

	out := sb.String()
	assert.Contains(t, out, `RegisterTemplate id=7 name="card"`)
	assert.Contains(t, out, "element <div>")
	assert.Contains(t, out, "dynamic-text slot=0")
	assert.Contains(t, out, `static class="card"`)
	assert.Contains(t, out, "LoadTemplate template=7 root=0 handle=1")
	assert.Contains(t, out, "ns=xlink")
	assert.Contains(t, out, `SetText handle=1 text="hello"`)
	assert.Contains(t, out, "AppendChildren handle=0 count=1")
	assert.Contains(t, out, "End")
}

func TestDumpStream_BadStream(t *testing.T) {
	// An unrecognized opcode surfaces as a decode error.
	err := dumpStream(&strings.Builder{}, []byte{0xEE})
	assert.Error(t, err)
}
