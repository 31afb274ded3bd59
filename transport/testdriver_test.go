package transport_test

import (
	"io"
	"sync"

	"github.com/ecrterm/ecrterm/port"
)

// chanDriver is an in-memory port.Driver for tests: bytes pushed via Push
// are what ReadByte subsequently returns; bytes Written are recorded for
// assertions.
type chanDriver struct {
	inbox chan byte

	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func newChanDriver() *chanDriver {
	return &chanDriver{inbox: make(chan byte, 4096)}
}

var _ port.Driver = (*chanDriver)(nil)

func (d *chanDriver) Push(bs ...byte) {
	for _, b := range bs {
		d.inbox <- b
	}
}

func (d *chanDriver) Read(p []byte) (int, error) {
	b, ok := <-d.inbox
	if !ok {
		return 0, io.EOF
	}
	p[0] = b
	return 1, nil
}

func (d *chanDriver) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := append([]byte{}, p...)
	d.written = append(d.written, cp)
	return len(p), nil
}

func (d *chanDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.inbox)
	}
	return nil
}

func (d *chanDriver) DiscardInput() error {
	for {
		select {
		case <-d.inbox:
		default:
			return nil
		}
	}
}

func (d *chanDriver) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.written))
	copy(out, d.written)
	return out
}
