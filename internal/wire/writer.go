package wire

import (
	"encoding/binary"
	"fmt"
)

// Writer appends instruction records to a fixed-capacity buffer, mirroring
// the Reader's encoding byte for byte. It carries a sticky error: after the
// first failed write every further call is a no-op, so a producer can emit a
// whole batch and check Err once. Offset exposes the running byte position
// so the producer can detect buffer exhaustion before it happens.
type Writer struct {
	buf []byte
	pos int
	err error
}

// NewWriter returns a writer over buf. Records are appended starting at
// offset zero; the buffer's length is the hard capacity.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int {
	return w.pos
}

// Err returns the first error encountered, or nil.
func (w *Writer) Err() error {
	return w.err
}

// Bytes returns the written region of the buffer.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// Reset rewinds the writer to offset zero and clears any sticky error, so
// the same buffer can carry the next flush.
func (w *Writer) Reset() {
	w.pos = 0
	w.err = nil
}

// PushRoot appends a PushRoot record.
func (w *Writer) PushRoot(handle uint32) {
	w.op(OpPushRoot)
	w.u32(handle)
}

// LoadTemplate appends a LoadTemplate record.
func (w *Writer) LoadTemplate(template uint32, rootIndex uint16, handle uint32) {
	w.op(OpLoadTemplate)
	w.u32(template)
	w.u16(rootIndex)
	w.u32(handle)
}

// CreateTextNode appends a CreateTextNode record.
func (w *Writer) CreateTextNode(handle uint32, text string) {
	w.op(OpCreateTextNode)
	w.u32(handle)
	w.longString(text)
}

// CreatePlaceholder appends a CreatePlaceholder record.
func (w *Writer) CreatePlaceholder(handle uint32) {
	w.op(OpCreatePlaceholder)
	w.u32(handle)
}

// AssignID appends an AssignID record.
func (w *Writer) AssignID(path []uint8, handle uint32) {
	w.op(OpAssignID)
	w.path(path)
	w.u32(handle)
}

// AppendChildren appends an AppendChildren record.
func (w *Writer) AppendChildren(handle uint32, count uint16) {
	w.op(OpAppendChildren)
	w.u32(handle)
	w.u16(count)
}

// InsertAfter appends an InsertAfter record.
func (w *Writer) InsertAfter(handle uint32, count uint16) {
	w.op(OpInsertAfter)
	w.u32(handle)
	w.u16(count)
}

// InsertBefore appends an InsertBefore record.
func (w *Writer) InsertBefore(handle uint32, count uint16) {
	w.op(OpInsertBefore)
	w.u32(handle)
	w.u16(count)
}

// ReplaceWith appends a ReplaceWith record.
func (w *Writer) ReplaceWith(handle uint32, count uint16) {
	w.op(OpReplaceWith)
	w.u32(handle)
	w.u16(count)
}

// ReplacePlaceholder appends a ReplacePlaceholder record.
func (w *Writer) ReplacePlaceholder(path []uint8, count uint16) {
	w.op(OpReplacePlaceholder)
	w.path(path)
	w.u16(count)
}

// SetAttribute appends a SetAttribute record.
func (w *Writer) SetAttribute(handle uint32, ns Namespace, name, value string) {
	w.op(OpSetAttribute)
	w.u32(handle)
	w.u8(uint8(ns))
	w.shortString(name)
	w.longString(value)
}

// SetText appends a SetText record.
func (w *Writer) SetText(handle uint32, text string) {
	w.op(OpSetText)
	w.u32(handle)
	w.longString(text)
}

// NewEventListener appends a NewEventListener record.
func (w *Writer) NewEventListener(handle uint32, event string, handlerID uint32) {
	w.op(OpNewEventListener)
	w.u32(handle)
	w.shortString(event)
	w.u32(handlerID)
}

// RemoveEventListener appends a RemoveEventListener record.
func (w *Writer) RemoveEventListener(handle uint32, event string) {
	w.op(OpRemoveEventListener)
	w.u32(handle)
	w.shortString(event)
}

// Remove appends a Remove record.
func (w *Writer) Remove(handle uint32) {
	w.op(OpRemove)
	w.u32(handle)
}

// RegisterTemplate appends a RegisterTemplate record with the full
// self-describing blueprint payload.
func (w *Writer) RegisterTemplate(bp *Blueprint) {
	w.op(OpRegisterTemplate)
	w.u32(bp.ID)
	w.shortString(bp.Name)
	w.u16count(len(bp.Roots), "root")
	w.u16count(len(bp.Nodes), "node")
	w.u16count(len(bp.Attrs), "attribute")
	for i := range bp.Nodes {
		w.blueprintNode(&bp.Nodes[i])
	}
	for i := range bp.Attrs {
		w.blueprintAttr(&bp.Attrs[i])
	}
	for _, root := range bp.Roots {
		w.u16(root)
	}
}

// End appends the stream terminator.
func (w *Writer) End() {
	w.op(OpEnd)
}

func (w *Writer) blueprintNode(n *BlueprintNode) {
	w.u8(uint8(n.Kind))
	switch n.Kind {
	case BlueprintElement:
		w.u8(n.Tag)
		w.u16count(len(n.Children), "child")
		for _, c := range n.Children {
			w.u16(c)
		}
		w.u16(n.FirstAttr)
		w.u16(n.AttrCount)
	case BlueprintText:
		w.longString(n.Text)
	case BlueprintDynamic, BlueprintDynamicText:
		w.u32(n.Slot)
	default:
		w.fail(fmt.Errorf("unrecognized blueprint node kind %d", n.Kind))
	}
}

func (w *Writer) blueprintAttr(a *BlueprintAttr) {
	w.u8(uint8(a.Kind))
	switch a.Kind {
	case BlueprintAttrStatic:
		w.shortString(a.Name)
		w.longString(a.Value)
	case BlueprintAttrDynamic:
		w.u32(a.Slot)
	default:
		w.fail(fmt.Errorf("unrecognized blueprint attribute kind %d", a.Kind))
	}
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) reserve(n int) bool {
	if w.err != nil {
		return false
	}
	if len(w.buf)-w.pos < n {
		w.fail(ErrBufferFull)
		return false
	}
	return true
}

func (w *Writer) op(o Op) {
	w.u8(uint8(o))
}

func (w *Writer) u8(v uint8) {
	if !w.reserve(1) {
		return
	}
	w.buf[w.pos] = v
	w.pos++
}

func (w *Writer) u16(v uint16) {
	if !w.reserve(2) {
		return
	}
	binary.LittleEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
}

func (w *Writer) u32(v uint32) {
	if !w.reserve(4) {
		return
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *Writer) u16count(n int, what string) {
	if n > 0xFFFF {
		w.fail(fmt.Errorf("%s count %d exceeds u16", what, n))
		return
	}
	w.u16(uint16(n))
}

func (w *Writer) shortString(s string) {
	if len(s) > 0xFFFF {
		w.fail(fmt.Errorf("short string of %d bytes exceeds u16 length prefix", len(s)))
		return
	}
	w.u16(uint16(len(s)))
	w.stringBytes(s)
}

func (w *Writer) longString(s string) {
	w.u32(uint32(len(s)))
	w.stringBytes(s)
}

func (w *Writer) path(path []uint8) {
	if len(path) > 0xFF {
		w.fail(fmt.Errorf("path of %d steps exceeds u8 count", len(path)))
		return
	}
	w.u8(uint8(len(path)))
	if !w.reserve(len(path)) {
		return
	}
	copy(w.buf[w.pos:], path)
	w.pos += len(path)
}

func (w *Writer) stringBytes(s string) {
	if !w.reserve(len(s)) {
		return
	}
	copy(w.buf[w.pos:], s)
	w.pos += len(s)
}
