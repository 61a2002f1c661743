package wire

// Instruction is one decoded record: the opcode plus whichever fields that
// opcode carries. Unused fields are left at their zero values, making the
// struct a flat tagged union keyed by Op.
type Instruction struct {
	Op     Op
	Offset int // byte offset of the opcode within the buffer, for diagnostics

	Handle    uint32     // node handle operand
	Template  uint32     // template id (LoadTemplate)
	RootIndex uint16     // template root index (LoadTemplate)
	Count     uint16     // pop count (AppendChildren, Insert*, Replace*)
	Path      []uint8    // child-index steps (AssignID, ReplacePlaceholder)
	Ns        Namespace  // attribute namespace (SetAttribute)
	Name      string     // attribute or event name, short string
	Value     string     // text or attribute value, long string
	HandlerID uint32     // producer-side handler id (NewEventListener)
	Blueprint *Blueprint // RegisterTemplate payload
}

// BlueprintNodeKind discriminates the node records of a self-describing
// template blueprint.
type BlueprintNodeKind uint8

const (
	BlueprintElement     BlueprintNodeKind = 0
	BlueprintText        BlueprintNodeKind = 1
	BlueprintDynamic     BlueprintNodeKind = 2
	BlueprintDynamicText BlueprintNodeKind = 3
)

// String returns the record kind's wire name.
func (k BlueprintNodeKind) String() string {
	switch k {
	case BlueprintElement:
		return "element"
	case BlueprintText:
		return "text"
	case BlueprintDynamic:
		return "dynamic"
	case BlueprintDynamicText:
		return "dynamic-text"
	default:
		return "unknown"
	}
}

// BlueprintNode is one entry in a blueprint's node table.
type BlueprintNode struct {
	Kind BlueprintNodeKind

	// Element fields
	Tag       uint8    // tag catalog id
	Children  []uint16 // indices into the node table
	FirstAttr uint16   // index of the first attribute in the attribute table
	AttrCount uint16   // number of attributes, starting at FirstAttr

	// Text field
	Text string

	// Dynamic fields
	Slot uint32 // dynamic slot index
}

// BlueprintAttrKind discriminates the attribute records of a blueprint.
type BlueprintAttrKind uint8

const (
	BlueprintAttrStatic  BlueprintAttrKind = 0
	BlueprintAttrDynamic BlueprintAttrKind = 1
)

// BlueprintAttr is one entry in a blueprint's attribute table.
type BlueprintAttr struct {
	Kind  BlueprintAttrKind
	Name  string // static
	Value string // static
	Slot  uint32 // dynamic slot index
}

// Blueprint is the fully self-describing template payload of a
// RegisterTemplate record: a node table, an attribute table, and the indices
// of the root nodes, enough to rebuild the template with no host-side
// foreknowledge.
type Blueprint struct {
	ID    uint32
	Name  string
	Nodes []BlueprintNode
	Attrs []BlueprintAttr
	Roots []uint16
}
