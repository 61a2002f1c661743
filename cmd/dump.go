package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/domwire/internal/wire"
)

// dumpCmd disassembles a captured instruction stream.
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Disassemble an instruction stream",
	Long: `Dump decodes a captured binary instruction stream and prints one line
per instruction with its byte offset, opcode, and operands. Template
blueprints are expanded into their node and attribute tables.

Examples:
  domwire dump stream.bin
  cat stream.bin | domwire dump -`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	var buf []byte
	var err error
	if args[0] == "-" {
		buf, err = io.ReadAll(cmd.InOrStdin())
	} else {
		buf, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	return dumpStream(cmd.OutOrStdout(), buf)
}

// dumpStream prints the disassembly of one instruction stream.
func dumpStream(w io.Writer, buf []byte) error {
	r := wire.NewReader(buf, 0, len(buf))
	for {
		in, err := r.Next()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%06x  %s\n", in.Offset, formatInstruction(in))
		if in.Op == wire.OpEnd {
			return nil
		}
	}
}

func formatInstruction(in wire.Instruction) string {
	switch in.Op {
	case wire.OpEnd:
		return "End"
	case wire.OpPushRoot:
		return fmt.Sprintf("PushRoot handle=%d", in.Handle)
	case wire.OpLoadTemplate:
		return fmt.Sprintf("LoadTemplate template=%d root=%d handle=%d",
			in.Template, in.RootIndex, in.Handle)
	case wire.OpCreateTextNode:
		return fmt.Sprintf("CreateTextNode handle=%d text=%q", in.Handle, in.Value)
	case wire.OpCreatePlaceholder:
		return fmt.Sprintf("CreatePlaceholder handle=%d", in.Handle)
	case wire.OpAssignID:
		return fmt.Sprintf("AssignID path=%s handle=%d", formatPath(in.Path), in.Handle)
	case wire.OpAppendChildren:
		return fmt.Sprintf("AppendChildren handle=%d count=%d", in.Handle, in.Count)
	case wire.OpInsertAfter:
		return fmt.Sprintf("InsertAfter handle=%d count=%d", in.Handle, in.Count)
	case wire.OpInsertBefore:
		return fmt.Sprintf("InsertBefore handle=%d count=%d", in.Handle, in.Count)
	case wire.OpReplaceWith:
		return fmt.Sprintf("ReplaceWith handle=%d count=%d", in.Handle, in.Count)
	case wire.OpReplacePlaceholder:
		return fmt.Sprintf("ReplacePlaceholder path=%s count=%d", formatPath(in.Path), in.Count)
	case wire.OpSetAttribute:
		if in.Ns != wire.NamespaceNone {
			return fmt.Sprintf("SetAttribute handle=%d ns=%s name=%q value=%q",
				in.Handle, in.Ns, in.Name, in.Value)
		}
		return fmt.Sprintf("SetAttribute handle=%d name=%q value=%q",
			in.Handle, in.Name, in.Value)
	case wire.OpSetText:
		return fmt.Sprintf("SetText handle=%d text=%q", in.Handle, in.Value)
	case wire.OpNewEventListener:
		return fmt.Sprintf("NewEventListener handle=%d event=%q handler=%d",
			in.Handle, in.Name, in.HandlerID)
	case wire.OpRemoveEventListener:
		return fmt.Sprintf("RemoveEventListener handle=%d event=%q", in.Handle, in.Name)
	case wire.OpRemove:
		return fmt.Sprintf("Remove handle=%d", in.Handle)
	case wire.OpRegisterTemplate:
		return formatBlueprint(in.Blueprint)
	default:
		return in.Op.String()
	}
}

func formatPath(path []uint8) string {
	if len(path) == 0 {
		return "[]"
	}
	parts := make([]string, len(path))
	for i, step := range path {
		parts[i] = fmt.Sprintf("%d", step)
	}
	return "[" + strings.Join(parts, ".") + "]"
}

func formatBlueprint(bp *wire.Blueprint) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RegisterTemplate id=%d name=%q roots=%v",
		bp.ID, bp.Name, bp.Roots)
	for i, node := range bp.Nodes {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "        node %d: %s", i, formatBlueprintNode(node))
	}
	for i, attr := range bp.Attrs {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "        attr %d: %s", i, formatBlueprintAttr(attr))
	}
	return sb.String()
}

func formatBlueprintNode(node wire.BlueprintNode) string {
	switch node.Kind {
	case wire.BlueprintElement:
		tag, ok := wire.TagName(node.Tag)
		if !ok {
			tag = fmt.Sprintf("tag#%d", node.Tag)
		}
		s := fmt.Sprintf("element <%s> children=%v", tag, node.Children)
		if node.AttrCount > 0 {
			s += fmt.Sprintf(" attrs=%d..%d", node.FirstAttr, node.FirstAttr+node.AttrCount-1)
		}
		return s
	case wire.BlueprintText:
		return fmt.Sprintf("text %q", node.Text)
	case wire.BlueprintDynamic:
		return fmt.Sprintf("dynamic slot=%d", node.Slot)
	case wire.BlueprintDynamicText:
		return fmt.Sprintf("dynamic-text slot=%d", node.Slot)
	default:
		return fmt.Sprintf("unknown kind %d", node.Kind)
	}
}

func formatBlueprintAttr(attr wire.BlueprintAttr) string {
	if attr.Kind == wire.BlueprintAttrDynamic {
		return fmt.Sprintf("dynamic slot=%d", attr.Slot)
	}
	return fmt.Sprintf("static %s=%q", attr.Name, attr.Value)
}
