package wire

import "encoding/binary"

// Reader is a bounds-checked cursor over one region of the shared mutation
// buffer. It decodes instruction records lazily, one per Next call, and is
// not restartable: to re-read a region, construct a new Reader over it.
//
// The stream ends at an explicit End record or at the declared length,
// whichever comes first; past either, Next keeps returning End records.
type Reader struct {
	buf []byte
	pos int
	end int
}

// NewReader returns a cursor over buf[offset:offset+length]. The length is
// the producer's declared byte count for this flush; the Reader trusts it
// but never reads past it or past the physical buffer.
func NewReader(buf []byte, offset, length int) *Reader {
	end := offset + length
	if end > len(buf) {
		end = len(buf)
	}
	if offset > end {
		offset = end
	}
	return &Reader{buf: buf, pos: offset, end: end}
}

// Offset returns the cursor's current byte position.
func (r *Reader) Offset() int {
	return r.pos
}

// Next decodes and returns the next instruction record. Once the stream is
// exhausted it returns a synthetic End record with a nil error.
func (r *Reader) Next() (Instruction, error) {
	if r.pos >= r.end {
		return Instruction{Op: OpEnd, Offset: r.pos}, nil
	}
	in := Instruction{Offset: r.pos}
	op := Op(r.buf[r.pos])
	r.pos++
	if !op.Valid() {
		return in, protocolErrorf(in.Offset, "unrecognized opcode 0x%02X", uint8(op))
	}
	in.Op = op

	var err error
	switch op {
	case OpEnd:
		// Terminator; no fields.
	case OpPushRoot, OpCreatePlaceholder, OpRemove:
		in.Handle, err = r.u32()
	case OpLoadTemplate:
		if in.Template, err = r.u32(); err != nil {
			return in, err
		}
		if in.RootIndex, err = r.u16(); err != nil {
			return in, err
		}
		in.Handle, err = r.u32()
	case OpCreateTextNode, OpSetText:
		if in.Handle, err = r.u32(); err != nil {
			return in, err
		}
		in.Value, err = r.longString()
	case OpAssignID:
		if in.Path, err = r.path(); err != nil {
			return in, err
		}
		in.Handle, err = r.u32()
	case OpAppendChildren, OpInsertAfter, OpInsertBefore, OpReplaceWith:
		if in.Handle, err = r.u32(); err != nil {
			return in, err
		}
		in.Count, err = r.u16()
	case OpReplacePlaceholder:
		if in.Path, err = r.path(); err != nil {
			return in, err
		}
		in.Count, err = r.u16()
	case OpSetAttribute:
		if in.Handle, err = r.u32(); err != nil {
			return in, err
		}
		var ns uint8
		if ns, err = r.u8(); err != nil {
			return in, err
		}
		in.Ns = Namespace(ns)
		if in.Name, err = r.shortString(); err != nil {
			return in, err
		}
		in.Value, err = r.longString()
	case OpNewEventListener:
		if in.Handle, err = r.u32(); err != nil {
			return in, err
		}
		if in.Name, err = r.shortString(); err != nil {
			return in, err
		}
		in.HandlerID, err = r.u32()
	case OpRemoveEventListener:
		if in.Handle, err = r.u32(); err != nil {
			return in, err
		}
		in.Name, err = r.shortString()
	case OpRegisterTemplate:
		in.Blueprint, err = r.blueprint()
	}
	return in, err
}

func (r *Reader) blueprint() (*Blueprint, error) {
	bp := &Blueprint{}
	var err error
	if bp.ID, err = r.u32(); err != nil {
		return nil, err
	}
	if bp.Name, err = r.shortString(); err != nil {
		return nil, err
	}
	rootCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	nodeCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	attrCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	bp.Nodes = make([]BlueprintNode, nodeCount)
	for i := range bp.Nodes {
		if err := r.blueprintNode(&bp.Nodes[i]); err != nil {
			return nil, err
		}
	}
	bp.Attrs = make([]BlueprintAttr, attrCount)
	for i := range bp.Attrs {
		if err := r.blueprintAttr(&bp.Attrs[i]); err != nil {
			return nil, err
		}
	}
	bp.Roots = make([]uint16, rootCount)
	for i := range bp.Roots {
		if bp.Roots[i], err = r.u16(); err != nil {
			return nil, err
		}
	}
	return bp, nil
}

func (r *Reader) blueprintNode(n *BlueprintNode) error {
	kind, err := r.u8()
	if err != nil {
		return err
	}
	n.Kind = BlueprintNodeKind(kind)
	switch n.Kind {
	case BlueprintElement:
		if n.Tag, err = r.u8(); err != nil {
			return err
		}
		childCount, err := r.u16()
		if err != nil {
			return err
		}
		n.Children = make([]uint16, childCount)
		for i := range n.Children {
			if n.Children[i], err = r.u16(); err != nil {
				return err
			}
		}
		if n.FirstAttr, err = r.u16(); err != nil {
			return err
		}
		n.AttrCount, err = r.u16()
		return err
	case BlueprintText:
		n.Text, err = r.longString()
		return err
	case BlueprintDynamic, BlueprintDynamicText:
		n.Slot, err = r.u32()
		return err
	default:
		return protocolErrorf(r.pos-1, "unrecognized blueprint node kind %d", kind)
	}
}

func (r *Reader) blueprintAttr(a *BlueprintAttr) error {
	kind, err := r.u8()
	if err != nil {
		return err
	}
	a.Kind = BlueprintAttrKind(kind)
	switch a.Kind {
	case BlueprintAttrStatic:
		if a.Name, err = r.shortString(); err != nil {
			return err
		}
		a.Value, err = r.longString()
		return err
	case BlueprintAttrDynamic:
		a.Slot, err = r.u32()
		return err
	default:
		return protocolErrorf(r.pos-1, "unrecognized blueprint attribute kind %d", kind)
	}
}

func (r *Reader) u8() (uint8, error) {
	if r.end-r.pos < 1 {
		return 0, protocolErrorf(r.pos, "truncated field: need 1 byte, have %d", r.end-r.pos)
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) u16() (uint16, error) {
	if r.end-r.pos < 2 {
		return 0, protocolErrorf(r.pos, "truncated field: need 2 bytes, have %d", r.end-r.pos)
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) u32() (uint32, error) {
	if r.end-r.pos < 4 {
		return 0, protocolErrorf(r.pos, "truncated field: need 4 bytes, have %d", r.end-r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) bytes(n int) ([]byte, error) {
	if r.end-r.pos < n {
		return nil, protocolErrorf(r.pos, "truncated field: need %d bytes, have %d", n, r.end-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// shortString reads a u16-length-prefixed UTF-8 string (names and other
// short identifiers).
func (r *Reader) shortString() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// longString reads a u32-length-prefixed UTF-8 string (text content and
// attribute values).
func (r *Reader) longString() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// path reads a u8 step count followed by that many u8 child indices.
func (r *Reader) path() ([]uint8, error) {
	n, err := r.u8()
	if err != nil {
		return nil, err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return nil, err
	}
	path := make([]uint8, n)
	copy(path, b)
	return path, nil
}
