// Package transport implements the concurrency core of the engine: the
// single long-lived Reader Loop (spec §4.2), the mutually-exclusive Sender
// with retry (spec §4.3), and the Protocol engine that owns their shared
// port and lazily (re)creates itself after a teardown (spec §3 "Ownership &
// lifecycle", §5).
package transport

import (
	"sync"
	"time"

	"github.com/ecrterm/ecrterm/ecrerr"
	"github.com/ecrterm/ecrterm/port"
	"github.com/ecrterm/ecrterm/wire"
)

// CommErr mirrors port.CommErr for faults detected at the transport layer
// itself (reader exit) rather than inside the port.
var CommErr = ecrerr.NewErrorType("transport.CommunicationError")
var ErrReaderExited = CommErr.Code("reader loop exited")

// TimeoutErr is spec §7's TimeoutError: all send attempts exhausted without
// ACK/NAK/STX.
var TimeoutErr = ecrerr.NewErrorType("transport.TimeoutError")
var ErrSendExhausted = TimeoutErr.Code("attempts failed")

// Handlers are the callbacks the Protocol engine drives. The Coordinator
// supplies them at construction and they live for the engine's lifetime;
// this is the "non-owning back-reference via message-passing" from spec §9
// rather than a cyclic owning pointer.
type Handlers struct {
	// OnFrame is called once per completed logical payload, in wire order.
	// It must not block; the reader loop is paused while it runs.
	OnFrame func(payload []byte)
	// OnCommandAccepted is called when a send's first response byte was
	// ACK or STX.
	OnCommandAccepted func(commandID string)
	// OnError is the error channel from spec §7: it carries both
	// CommunicationError (reader/port failure, engine already torn down by
	// the time this fires) and TimeoutError (a Send exhausted its
	// retries). Callers distinguish the two with ecrerr.Code.
	OnError func(err error)
}

// Config holds the engine's tunable timings, spec §9.
type Config struct {
	AckDelay    time.Duration
	SendTimeout time.Duration
	MaxRetries  int
}

// DefaultConfig matches spec §9's stated defaults.
func DefaultConfig() Config {
	return Config{AckDelay: 100 * time.Millisecond, SendTimeout: 3 * time.Second, MaxRetries: 3}
}

// Engine is the Protocol engine: it owns the port exclusively (only the
// reader reads, only the sender writes) and is recreated lazily after a
// teardown, spec §3.
type Engine struct {
	adapter  *port.Adapter
	handlers Handlers
	cfg      Config

	rv *rendezvous

	lifecycleMu sync.Mutex // guards lazy (re)construction/teardown, spec §5
	running     bool
	readerDone  chan struct{}

	sendMu sync.Mutex // at most one send in flight, spec §4.3
}

// New builds an Engine bound to adapter. The port is not opened until
// Start is called.
func New(adapter *port.Adapter, handlers Handlers, cfg Config) *Engine {
	return &Engine{adapter: adapter, handlers: handlers, cfg: cfg, rv: newRendezvous()}
}

// Start opens the port (if needed) and spawns the reader loop (if not
// already running). It is idempotent and safe to call from any goroutine;
// the Coordinator calls it lazily before every operation that needs the
// wire, per spec §3's "recreated lazily after a teardown".
func (e *Engine) Start() error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	if e.running {
		return nil
	}
	if err := e.adapter.Open(); err != nil {
		return err
	}
	e.readerDone = make(chan struct{})
	e.running = true
	go e.readLoop(e.readerDone)
	return nil
}

// SetHandlers replaces the engine's Handlers. Intended for a Coordinator to
// bind itself to an Engine it did not construct; callers must do this
// before the first Start.
func (e *Engine) SetHandlers(h Handlers) {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	e.handlers = h
}

// Running reports whether the engine believes the reader loop is active.
func (e *Engine) Running() bool {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	return e.running
}

// Teardown closes the port and joins the reader loop, clearing the running
// flag so a later Start reopens cleanly.
func (e *Engine) Teardown() {
	e.lifecycleMu.Lock()
	running := e.running
	done := e.readerDone
	e.lifecycleMu.Unlock()
	if !running {
		return
	}
	e.adapter.Close()
	if done != nil {
		<-done
	}
}

// writeFrame is the only method that ever calls adapter.Write; invoked by
// both Send (after discarding input) and the reader loop's ACK/NAK replies.
func (e *Engine) writeFrame(buf []byte) error {
	return e.adapter.Write(buf)
}

// SendFrame is a convenience for callers that have an unframed payload: it
// wraps payload with wire.BuildFrame and hands the frame to Send, so call
// sites need not name wire.BuildFrame themselves.
func (e *Engine) SendFrame(payload []byte, commandID string) error {
	return e.Send(wire.BuildFrame(payload), commandID)
}
