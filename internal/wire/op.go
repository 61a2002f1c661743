// Package wire implements the binary mutation protocol shared with the
// producer: a fixed-endian, length-prefixed instruction encoding read by a
// bounds-checked cursor and written by a sticky-error writer over one reused
// buffer.
//
// All multi-byte integers are little-endian. Short strings (identifiers such
// as attribute and event names) are u16-length-prefixed UTF-8; long strings
// (text content and attribute values) are u32-length-prefixed. Paths are a
// u8 step count followed by that many u8 child indices. The two string widths
// are part of the interoperability contract and must never be collapsed.
package wire

// Op is the one-byte opcode that starts every instruction record.
type Op uint8

const (
	// OpEnd terminates decoding of the current buffer. It is deliberately
	// zero so that a zero-filled tail of the shared buffer reads as a clean
	// end of stream.
	OpEnd Op = 0x00

	// Stack / node production
	OpPushRoot          Op = 0x01 // push the node bound to a handle
	OpLoadTemplate      Op = 0x02 // instantiate a template root, bind and push it
	OpCreateTextNode    Op = 0x03 // create a text node, bind and push it
	OpCreatePlaceholder Op = 0x04 // create an invisible marker node, bind and push it
	OpAssignID          Op = 0x05 // bind a handle to the node at a path from the stack top

	// Tree mutation (these pop)
	OpAppendChildren     Op = 0x06 // pop n nodes, append to a handle's node
	OpInsertAfter        Op = 0x07 // pop n nodes, insert after a handle's node
	OpInsertBefore       Op = 0x08 // pop n nodes, insert before a handle's node
	OpReplaceWith        Op = 0x09 // pop n nodes, replace a handle's node with them
	OpReplacePlaceholder Op = 0x0A // pop n nodes, replace the node at a path under the stack top

	// In-place mutation
	OpSetAttribute Op = 0x0B // set a (possibly namespaced) attribute on a handle's element
	OpSetText      Op = 0x0C // replace the full text content of a handle's node

	// Events
	OpNewEventListener    Op = 0x0D // attach a listener reporting a handler id
	OpRemoveEventListener Op = 0x0E // detach the listener for an event name

	// Removal and registration
	OpRemove           Op = 0x0F // detach a handle's node from its parent and unbind it
	OpRegisterTemplate Op = 0x10 // register a self-describing template blueprint
)

var opNames = map[Op]string{
	OpEnd:                 "End",
	OpPushRoot:            "PushRoot",
	OpLoadTemplate:        "LoadTemplate",
	OpCreateTextNode:      "CreateTextNode",
	OpCreatePlaceholder:   "CreatePlaceholder",
	OpAssignID:            "AssignID",
	OpAppendChildren:      "AppendChildren",
	OpInsertAfter:         "InsertAfter",
	OpInsertBefore:        "InsertBefore",
	OpReplaceWith:         "ReplaceWith",
	OpReplacePlaceholder:  "ReplacePlaceholder",
	OpSetAttribute:        "SetAttribute",
	OpSetText:             "SetText",
	OpNewEventListener:    "NewEventListener",
	OpRemoveEventListener: "RemoveEventListener",
	OpRemove:              "Remove",
	OpRegisterTemplate:    "RegisterTemplate",
}

// String returns the mnemonic for the opcode, or "Invalid(0xNN)" for bytes
// outside the instruction set.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "Invalid(0x" + hexByte(uint8(o)) + ")"
}

// Valid reports whether the byte names an instruction in the protocol.
func (o Op) Valid() bool {
	_, ok := opNames[o]
	return ok
}

const hexDigits = "0123456789ABCDEF"

func hexByte(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}

// Namespace is the one-byte attribute namespace tag carried by SetAttribute.
type Namespace uint8

const (
	NamespaceNone  Namespace = 0
	NamespaceXLink Namespace = 1
	NamespaceXML   Namespace = 2
	NamespaceXMLNS Namespace = 3
)

// URL returns the namespace URI for the tag. Unrecognized tags fall back to
// the empty (unnamespaced) URI rather than failing; the producer may be newer
// than this host.
func (n Namespace) URL() string {
	switch n {
	case NamespaceXLink:
		return "http://www.w3.org/1999/xlink"
	case NamespaceXML:
		return "http://www.w3.org/XML/1998/namespace"
	case NamespaceXMLNS:
		return "http://www.w3.org/2000/xmlns/"
	default:
		return ""
	}
}

// String returns a short label for the namespace tag.
func (n Namespace) String() string {
	switch n {
	case NamespaceNone:
		return "none"
	case NamespaceXLink:
		return "xlink"
	case NamespaceXML:
		return "xml"
	case NamespaceXMLNS:
		return "xmlns"
	default:
		return "none"
	}
}
