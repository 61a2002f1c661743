// Package runtime assembles the mutation pipeline around one mount point:
// the shared mutation buffer, the codec, the handle table, the template
// registry, the interpreter, and the event bridge, wired to a producer.
//
// One Runtime owns one mount point and everything under it. Execution is
// synchronous and single-threaded: a decode-and-apply pass runs to
// completion before control returns, and an event dispatch follows one
// fixed cycle: resolve handler, call the producer's dispatch, call its
// flush, apply whatever came back.
package runtime

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/events"
	"github.com/conneroisu/domwire/internal/handles"
	"github.com/conneroisu/domwire/internal/interp"
	"github.com/conneroisu/domwire/internal/logging"
	"github.com/conneroisu/domwire/internal/templates"
	"github.com/conneroisu/domwire/internal/wire"
)

// DefaultBufferCapacity is the size of the shared mutation buffer when the
// configuration does not set one.
const DefaultBufferCapacity = 64 * 1024

// Producer is the external collaborator that decides content. It writes
// instruction streams into the shared buffer and receives handler
// invocations back; this runtime treats it as opaque.
type Producer interface {
	// Rebuild writes the full initial instruction stream into buf and
	// returns the number of bytes written.
	Rebuild(buf []byte) (int, error)

	// Flush writes the incremental instruction stream for whatever changed
	// since the last call. Zero bytes written means nothing changed.
	Flush(buf []byte) (int, error)

	// Dispatch delivers an event to the handler the producer registered.
	Dispatch(handlerID uint32, event string) bool

	// DispatchValue delivers an event that carries a value.
	DispatchValue(handlerID uint32, event, value string) bool
}

// Config holds runtime construction options.
type Config struct {
	// BufferCapacity is the fixed size of the shared mutation buffer. The
	// producer is responsible for staying within it.
	BufferCapacity int

	// Delegated installs the event bridge in delegated mode, where events
	// bubble to the nearest bound ancestor with a listener.
	Delegated bool

	Logger logging.Logger
}

// Runtime reconstructs and incrementally patches the live tree under one
// mount point from the producer's instruction streams.
type Runtime struct {
	mount     *html.Node
	buffer    []byte
	producer  Producer
	handles   *handles.Table
	templates *templates.Registry
	bridge    *events.Bridge
	interp    *interp.Interpreter
	logger    logging.Logger
	delegated bool
	lastErr   error
}

// New returns a runtime over the given mount node and producer. The mount
// node is handle 0; it is host chrome and is never itself replaced.
func New(mount *html.Node, producer Producer, cfg *Config) *Runtime {
	if cfg == nil {
		cfg = &Config{}
	}
	capacity := cfg.BufferCapacity
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	rt := &Runtime{
		mount:     mount,
		buffer:    make([]byte, capacity),
		producer:  producer,
		logger:    logger.WithComponent("runtime"),
		delegated: cfg.Delegated,
	}
	rt.templates = templates.NewRegistry()
	rt.reset()
	return rt
}

// reset rebuilds the per-mount interpreter state: handle table seeded with
// the root handle, a fresh bridge, and an empty operand stack. Registered
// templates survive; they live for the lifetime of the runtime.
func (rt *Runtime) reset() {
	rt.handles = handles.NewTable(rt.mount)
	rt.bridge = events.NewBridge(rt.handles)
	if rt.delegated {
		rt.bridge.Install()
	}
	rt.bridge.SetDispatch(rt.producer.Dispatch, rt.producer.DispatchValue)
	rt.bridge.OnAfterDispatch(rt.flushCycle)
	rt.interp = interp.New(rt.handles, rt.templates, rt.bridge)
}

// Mount asks the producer for the full initial instruction stream and
// applies it.
func (rt *Runtime) Mount(ctx context.Context) error {
	n, err := rt.producer.Rebuild(rt.buffer)
	if err != nil {
		return fmt.Errorf("producer rebuild: %w", err)
	}
	rt.logger.Debug(ctx, "mounting", "bytes", n)
	if err := rt.Apply(n); err != nil {
		return err
	}
	return nil
}

// Remount discards the live tree under the mount point and all per-mount
// state, then mounts again. The template registry is kept.
func (rt *Runtime) Remount(ctx context.Context) error {
	for rt.mount.FirstChild != nil {
		rt.mount.RemoveChild(rt.mount.FirstChild)
	}
	rt.reset()
	rt.logger.Info(ctx, "remounting")
	return rt.Mount(ctx)
}

// Apply decodes and executes the first length bytes of the shared buffer
// against the live tree. Mutations applied before a fatal error stay.
func (rt *Runtime) Apply(length int) error {
	if length <= 0 {
		return nil
	}
	if length > len(rt.buffer) {
		return fmt.Errorf("declared length %d exceeds buffer capacity %d", length, len(rt.buffer))
	}
	reader := wire.NewReader(rt.buffer, 0, length)
	if err := rt.interp.Apply(reader); err != nil {
		return fmt.Errorf("applying mutation buffer: %w", err)
	}
	return nil
}

// Buffer exposes the shared mutation buffer for producers that write into
// it directly rather than through Rebuild/Flush.
func (rt *Runtime) Buffer() []byte {
	return rt.buffer
}

// Fire delivers a user interaction aimed at a handle and runs the full
// dispatch-flush-apply cycle.
func (rt *Runtime) Fire(handle uint32, event string) bool {
	return rt.bridge.Fire(handle, event)
}

// FireValue is Fire for events that carry a value.
func (rt *Runtime) FireValue(handle uint32, event, value string) bool {
	return rt.bridge.FireValue(handle, event, value)
}

// flushCycle is the standard after-dispatch wiring: ask the producer to
// flush, then apply whatever mutation buffer is returned. A failure here
// has no caller to return to, so it is logged and kept for Err.
func (rt *Runtime) flushCycle() {
	n, err := rt.producer.Flush(rt.buffer)
	if err != nil {
		rt.fail(fmt.Errorf("producer flush: %w", err))
		return
	}
	if n == 0 {
		return
	}
	if err := rt.Apply(n); err != nil {
		rt.fail(err)
	}
}

func (rt *Runtime) fail(err error) {
	rt.lastErr = err
	rt.logger.Error(context.Background(), err, "flush cycle failed")
}

// Err returns the most recent failure from an event-driven flush cycle,
// which has no direct caller to report to.
func (rt *Runtime) Err() error {
	return rt.lastErr
}

// Templates returns the runtime's template registry, so hosts can
// pre-register fragment or markup templates before mounting.
func (rt *Runtime) Templates() *templates.Registry {
	return rt.templates
}

// Handles returns the runtime's handle table.
func (rt *Runtime) Handles() *handles.Table {
	return rt.handles
}

// Bridge returns the runtime's event bridge.
func (rt *Runtime) Bridge() *events.Bridge {
	return rt.bridge
}

// Mountpoint returns the mount node, handle 0.
func (rt *Runtime) Mountpoint() *html.Node {
	return rt.mount
}

// RenderHTML serializes the producer's content, the children of the mount
// point, to HTML.
func (rt *Runtime) RenderHTML() (string, error) {
	return dom.RenderChildren(rt.mount)
}
