package transport

import (
	"sync"
	"time"
)

// rendezvous is the single-slot "first response byte" signalling primitive
// from spec §5/§9: the sender resets it before each write attempt, and the
// reader sets it exactly once per attempt, on the first byte observed after
// that write. Implemented as a mutex-guarded slot plus a one-shot channel
// rather than a raw condition variable, which composes better with
// WaitWithTimeout's select.
type rendezvous struct {
	mu  sync.Mutex
	ch  chan byte
}

func newRendezvous() *rendezvous {
	return &rendezvous{ch: make(chan byte, 1)}
}

// Reset clears any pending or stale value, preparing for a new attempt.
func (r *rendezvous) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.ch:
	default:
	}
}

// Set publishes b as the first response byte for the current attempt. Only
// the first Set after a Reset has any effect; later calls are dropped,
// since the slot already holds a value.
func (r *rendezvous) Set(b byte) {
	select {
	case r.ch <- b:
	default:
	}
}

// WaitWithTimeout blocks until Set is called or timeout elapses.
func (r *rendezvous) WaitWithTimeout(timeout time.Duration) (b byte, ok bool) {
	select {
	case v := <-r.ch:
		return v, true
	case <-time.After(timeout):
		return 0, false
	}
}
