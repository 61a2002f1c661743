//go:build property

package interp

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/events"
	"github.com/conneroisu/domwire/internal/handles"
	"github.com/conneroisu/domwire/internal/templates"
	"github.com/conneroisu/domwire/internal/wire"
)

// TestInterpreterStackProperties validates the operand stack contract: any
// pop count beyond the current depth fails with a stack underflow and stops
// the buffer application cold.
func TestInterpreterStackProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("pop beyond depth underflows and halts", prop.ForAll(
		func(pushes, extra int) bool {
			if pushes < 0 || pushes > 50 || extra < 1 || extra > 50 {
				return true
			}
			mount := dom.NewElement("div")
			table := handles.NewTable(mount)
			it := New(table, templates.NewRegistry(), events.NewBridge(table))

			buf := make([]byte, 8192)
			w := wire.NewWriter(buf)
			for i := 0; i < pushes; i++ {
				w.CreateTextNode(uint32(i+1), "n")
			}
			w.AppendChildren(0, uint16(pushes+extra))
			// A sentinel instruction that must never execute.
			w.CreateTextNode(9999, "after the failure")
			w.End()
			if w.Err() != nil {
				return false
			}

			err := it.Apply(wire.NewReader(buf, 0, w.Offset()))
			var serr *StackUnderflowError
			if !errors.As(err, &serr) {
				return false
			}
			if serr.Requested != pushes+extra || serr.Depth != pushes {
				return false
			}
			// Zero further instructions were applied.
			if _, err := table.Resolve(9999); err == nil {
				return false
			}
			return dom.ChildCount(mount) == 0
		},
		gen.IntRange(0, 50),
		gen.IntRange(1, 50),
	))

	properties.Property("exact pop count always succeeds", prop.ForAll(
		func(pushes int) bool {
			if pushes < 0 || pushes > 50 {
				return true
			}
			mount := dom.NewElement("div")
			table := handles.NewTable(mount)
			it := New(table, templates.NewRegistry(), events.NewBridge(table))

			buf := make([]byte, 8192)
			w := wire.NewWriter(buf)
			for i := 0; i < pushes; i++ {
				w.CreateTextNode(uint32(i+1), "n")
			}
			w.AppendChildren(0, uint16(pushes))
			w.End()
			if w.Err() != nil {
				return false
			}

			if err := it.Apply(wire.NewReader(buf, 0, w.Offset())); err != nil {
				return false
			}
			return dom.ChildCount(mount) == pushes && it.Depth() == 0
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
