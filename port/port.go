// Package port adapts a concrete serial-port driver to the byte-stream
// contract the transport layer needs: open/close, read one byte at a time,
// write a buffer, discard pending input, and single-byte character
// transcoding. Concrete serial drivers are an external collaborator
// (spec §1); this package only wraps whatever satisfies Driver.
package port

import (
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ecrterm/ecrterm/ecrerr"
	"golang.org/x/text/encoding/charmap"
)

// CommErr is the ErrorType for port-level I/O faults, surfaced to the
// coordinator as spec §7's CommunicationError.
var CommErr = ecrerr.NewErrorType("port.CommunicationError")

var ErrOpenFailed = CommErr.Code("failed to open serial port")
var ErrClosed = CommErr.Code("port is closed")
var ErrIO = CommErr.Code("port I/O failure")

// Driver is the minimal contract a concrete serial-port implementation must
// satisfy. Real drivers (e.g. an RS-232 UART binding) live outside this
// module; tests use an in-memory fake.
type Driver interface {
	io.ReadWriteCloser
	// DiscardInput drops any bytes currently buffered for read, without
	// blocking.
	DiscardInput() error
}

// Settings are the serial-line parameters, spec §6.
type Settings struct {
	Name            string
	BaudRate        int
	DataBits        int
	StopBits        int
	Parity          string // "N", "E", "O"
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// DefaultSettings matches spec §6's "19200 8-N-1 by default".
func DefaultSettings(name string) Settings {
	return Settings{
		Name:         name,
		BaudRate:     19200,
		DataBits:     8,
		StopBits:     1,
		Parity:       "N",
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// OpenFunc constructs a Driver from Settings. Supplied by the embedder so
// this package never imports a concrete OS serial binding.
type OpenFunc func(Settings) (Driver, error)

// codec transcodes single bytes read off the wire, and encodes text going
// onto it, using ISO-8859-15 with an ISO-8859-1 fallback (spec §6/§9).
type codec struct {
	primary  *charmap.Charmap
	fallback *charmap.Charmap
}

func newCodec() codec {
	return codec{primary: charmap.ISO8859_15, fallback: charmap.ISO8859_1}
}

// Decode converts a single wire byte to its rune using the primary charmap,
// falling back to ISO-8859-1 if the primary table has no mapping for it.
func (c codec) Decode(b byte) rune {
	if r := c.primary.DecodeByte(b); r != utf8.RuneError {
		return r
	}
	if r := c.fallback.DecodeByte(b); r != utf8.RuneError {
		return r
	}
	return rune(b)
}

// Encode converts text to wire bytes, falling back to ISO-8859-1 per byte
// when the primary charmap cannot represent a rune.
func (c codec) Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := c.primary.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		if b, ok := c.fallback.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}

// Adapter is the Byte Port Adapter: open/close, read-one-byte, write-buffer,
// discard-input, plus charset transcoding, spec §2.1.
type Adapter struct {
	settings Settings
	open     OpenFunc
	driver   Driver
	codec    codec
	mu       sync.Mutex // guards driver against concurrent Open/Close/teardown
}

// New creates an Adapter bound to settings; it does not open the port.
func New(settings Settings, open OpenFunc) *Adapter {
	return &Adapter{settings: settings, open: open, codec: newCodec()}
}

// IsOpen reports whether the underlying driver is currently open.
func (a *Adapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.driver != nil
}

func (a *Adapter) current() Driver {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.driver
}

// Open opens the underlying driver, failing immediately on an unknown or
// invalid port (spec §4.6 construction-time validation).
func (a *Adapter) Open() error {
	a.mu.Lock()
	if a.driver != nil {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	d, err := a.open(a.settings)
	if err != nil {
		return ErrOpenFailed.New(a.settings.Name, ecrerr.E(err)).Native()
	}
	a.mu.Lock()
	a.driver = d
	a.mu.Unlock()
	return nil
}

// Close closes the underlying driver, unblocking any in-flight ReadByte.
// Close on an already-closed Adapter is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	d := a.driver
	a.driver = nil
	a.mu.Unlock()
	if d == nil {
		return nil
	}
	if err := d.Close(); err != nil {
		return ErrIO.New("close", ecrerr.E(err)).Native()
	}
	return nil
}

// ReadByte blocks for one byte from the port.
func (a *Adapter) ReadByte() (byte, error) {
	d := a.current()
	if d == nil {
		return 0, ErrClosed.Default().Native()
	}
	var buf [1]byte
	n, err := d.Read(buf[:])
	if err != nil {
		return 0, ErrIO.New("read", ecrerr.E(err)).Native()
	}
	if n != 1 {
		return 0, ErrIO.New("short read", nil).Native()
	}
	return buf[0], nil
}

// Write writes buf to the port in full.
func (a *Adapter) Write(buf []byte) error {
	d := a.current()
	if d == nil {
		return ErrClosed.Default().Native()
	}
	if _, err := d.Write(buf); err != nil {
		return ErrIO.New("write", ecrerr.E(err)).Native()
	}
	return nil
}

// DiscardInput drops any buffered, unread input. Called by the sender
// before every write attempt, spec §4.3.
func (a *Adapter) DiscardInput() error {
	d := a.current()
	if d == nil {
		return ErrClosed.Default().Native()
	}
	if err := d.DiscardInput(); err != nil {
		return ErrIO.New("discard", ecrerr.E(err)).Native()
	}
	return nil
}

// DecodeByte transcodes a received wire byte to text using ISO-8859-15 with
// ISO-8859-1 fallback.
func (a *Adapter) DecodeByte(b byte) rune { return a.codec.Decode(b) }

// EncodeText transcodes text to wire bytes.
func (a *Adapter) EncodeText(s string) []byte { return a.codec.Encode(s) }
