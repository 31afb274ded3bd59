// Package event is the public observable interface: the engine never hands
// the embedder a callback, it publishes to typed, buffered channels, spec
// §2 item 8 / §9 "Event delivery". Embedders range over the channel(s) they
// care about; Close is called once by the Coordinator on final teardown.
package event

import "github.com/ecrterm/ecrterm/wire"

// Status is published for every decoded TransactionStatus ("2") message,
// whether or not it was routed to a user prompt.
type Status struct {
	SessionID  string
	Phase      byte
	ResultCode string
	Info       string
}

// Initialized is published once a session's transactionId stops being the
// placeholder, spec §3 "TransactionId becomes non-placeholder...".
type Initialized struct {
	SessionID     string
	TransactionID string
}

// AbortResult is the decoded "7" AbortTransactionResult message, spec §8
// scenario 3.
type AbortResult struct {
	SessionID  string
	ResultCode string
	Aborted    bool
}

// TerminalAbort carries spec §7's "not an error per se" abort detail.
type TerminalAbort struct {
	SessionID string
	Code      string
	Phase     byte
	Info      string
}

// CommandAccepted is published when a send's first response byte was ACK or
// STX, spec §4.3.
type CommandAccepted struct {
	CommandID string
}

// Result is the generic terminal-result event published for every session
// kind in addition to the kind-specific channel below.
type Result struct {
	SessionID string
	Kind      string // "Payment", "Refund", "Reversal", "Retrieve"
	Decoded   wire.TransactionResult
	Bonus     *Bonus
}

// Bonus carries the customer-bonus info absorbed during a bonus interleave
// or a standalone bonus-info request, spec §4.6 "Bonus interleave".
type Bonus struct {
	SessionID      string
	CustomerNumber string
	MemberClass    string
	StatusCode     string
	StatusText     string
}

// Error wraps any ecrerr.R surfaced by the engine, already in Native()
// form, spec §7.
type Error struct {
	Err error
}

// Bus is the Event Surface: one buffered channel per event kind, all fed by
// the Coordinator and consumed by the embedder.
type Bus struct {
	Status          chan Status
	Initialized     chan Initialized
	AbortResult     chan AbortResult
	TerminalAbort   chan TerminalAbort
	CommandAccepted chan CommandAccepted
	PurchaseResult  chan Result
	RefundResult    chan Result
	ReversalResult  chan Result
	RetrieveResult  chan Result
	Result          chan Result
	Bonus           chan Bonus
	DeviceStatus    chan wire.DeviceStatus
	Wakeup          chan struct{}
	Error           chan Error

	closed bool
}

// defaultCapacity matches the teacher's notification-channel sizing: large
// enough that a slow-consuming embedder never blocks the reader loop under
// normal traffic, without being unbounded.
const defaultCapacity = 32

// New allocates a Bus with all channels buffered to defaultCapacity.
func New() *Bus {
	return &Bus{
		Status:          make(chan Status, defaultCapacity),
		Initialized:     make(chan Initialized, defaultCapacity),
		AbortResult:     make(chan AbortResult, defaultCapacity),
		TerminalAbort:   make(chan TerminalAbort, defaultCapacity),
		CommandAccepted: make(chan CommandAccepted, defaultCapacity),
		PurchaseResult:  make(chan Result, defaultCapacity),
		RefundResult:    make(chan Result, defaultCapacity),
		ReversalResult:  make(chan Result, defaultCapacity),
		RetrieveResult:  make(chan Result, defaultCapacity),
		Result:          make(chan Result, defaultCapacity),
		Bonus:           make(chan Bonus, defaultCapacity),
		DeviceStatus:    make(chan wire.DeviceStatus, defaultCapacity),
		Wakeup:          make(chan struct{}, defaultCapacity),
		Error:           make(chan Error, defaultCapacity),
	}
}

// publish sends v on ch without blocking; if the embedder's buffer is full
// the oldest-undelivered event is dropped rather than stalling the reader
// loop (the same non-blocking-publisher trade spec §5 makes explicit for
// OnFrame: "it must not block").
func publish[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// EmitStatus publishes a Status event.
func (b *Bus) EmitStatus(v Status) { publish(b.Status, v) }

// EmitInitialized publishes an Initialized event.
func (b *Bus) EmitInitialized(v Initialized) { publish(b.Initialized, v) }

// EmitAbortResult publishes an AbortResult event.
func (b *Bus) EmitAbortResult(v AbortResult) { publish(b.AbortResult, v) }

// EmitTerminalAbort publishes a TerminalAbort event.
func (b *Bus) EmitTerminalAbort(v TerminalAbort) { publish(b.TerminalAbort, v) }

// EmitCommandAccepted publishes a CommandAccepted event.
func (b *Bus) EmitCommandAccepted(v CommandAccepted) { publish(b.CommandAccepted, v) }

// EmitBonus publishes a Bonus event.
func (b *Bus) EmitBonus(v Bonus) { publish(b.Bonus, v) }

// EmitDeviceStatus publishes a DeviceStatus event.
func (b *Bus) EmitDeviceStatus(v wire.DeviceStatus) { publish(b.DeviceStatus, v) }

// EmitWakeup publishes a Wakeup event.
func (b *Bus) EmitWakeup() { publish(b.Wakeup, struct{}{}) }

// EmitError publishes an Error event.
func (b *Bus) EmitError(v Error) { publish(b.Error, v) }

// EmitResult publishes r on both the generic Result channel and the
// kind-specific channel matching r.Kind.
func (b *Bus) EmitResult(r Result) {
	publish(b.Result, r)
	switch r.Kind {
	case "Payment":
		publish(b.PurchaseResult, r)
	case "Refund":
		publish(b.RefundResult, r)
	case "Reversal":
		publish(b.ReversalResult, r)
	case "Retrieve":
		publish(b.RetrieveResult, r)
	}
}

// Close closes every channel. Called exactly once by the Coordinator on
// final teardown (explicit disconnect); ranging embedders see their loops
// end cleanly. A second call to Close is a no-op.
func (b *Bus) Close() {
	if b.closed {
		return
	}
	b.closed = true
	close(b.Status)
	close(b.Initialized)
	close(b.AbortResult)
	close(b.TerminalAbort)
	close(b.CommandAccepted)
	close(b.PurchaseResult)
	close(b.RefundResult)
	close(b.ReversalResult)
	close(b.RetrieveResult)
	close(b.Result)
	close(b.Bonus)
	close(b.DeviceStatus)
	close(b.Wakeup)
	close(b.Error)
}
