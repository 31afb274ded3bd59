package transport

import (
	"time"

	"github.com/ecrterm/ecrterm/ecrerr"
	"github.com/ecrterm/ecrterm/ecrlog"
	"github.com/ecrterm/ecrterm/wire"
)

// readLoop is the single long-lived task from spec §4.2. It blocks on
// ReadByte, classifies each byte, assembles frames via wire.Reassembler,
// ACKs/NAKs inbound parts, and dispatches completed payloads to
// handlers.OnFrame in wire order. It exits only on a port error, at which
// point it tears the engine down and reports via OnError so a
// later operation can reopen lazily.
func (e *Engine) readLoop(done chan struct{}) {
	defer close(done)

	var reassembler wire.Reassembler
	inFrame := false

	for {
		b, err := e.adapter.ReadByte()
		if err != nil {
			e.handleReaderExit(err)
			return
		}

		if !inFrame {
			switch b {
			case wire.ACK, wire.NAK:
				e.rv.Set(b)
			case wire.STX:
				e.rv.Set(b)
				inFrame = true
				reassembler.ResetPart()
			default:
				ecrlog.Debugf("reader: ignoring stray byte 0x%02x outside a frame", b)
			}
			continue
		}

		outcome, payload := reassembler.Feed(b)
		switch outcome {
		case wire.PartPending:
			// keep accumulating
		case wire.PartGoodMore:
			inFrame = false
			e.ackAfterDelay()
		case wire.PartGoodFinal:
			inFrame = false
			e.ackAfterDelay()
			if e.handlers.OnFrame != nil {
				e.handlers.OnFrame(payload)
			}
		case wire.PartBadLRC:
			inFrame = false
			if err := e.writeFrame([]byte{wire.NAK}); err != nil {
				e.handleReaderExit(err)
				return
			}
		}
	}
}

// ackAfterDelay emits ACK after the configured turnaround delay, spec §4.2/§9.
func (e *Engine) ackAfterDelay() {
	if e.cfg.AckDelay > 0 {
		time.Sleep(e.cfg.AckDelay)
	}
	if err := e.writeFrame([]byte{wire.ACK}); err != nil {
		ecrlog.Warnf("reader: failed writing ACK: %v", err)
	}
}

func (e *Engine) handleReaderExit(err error) {
	e.lifecycleMu.Lock()
	e.running = false
	e.lifecycleMu.Unlock()
	e.adapter.Close()
	wrapped := ErrReaderExited.New("", ecrerr.E(err)).Native()
	if e.handlers.OnError != nil {
		e.handlers.OnError(wrapped)
	}
}
