package transport

import (
	"fmt"

	"github.com/ecrterm/ecrterm/ecrlog"
	"github.com/ecrterm/ecrterm/wire"
)

// Send writes frame (already STX/ETX/LRC-wrapped, or the raw ENQ byte for a
// handshake) and rendezvous-waits for the first response byte, retrying on
// NAK or timeout for at most cfg.MaxRetries attempts in total, spec §4.3. At most one Send is
// ever in flight (sendMu); the reader stays free throughout to ACK/NAK
// inbound traffic and to publish the rendezvous byte this call waits on.
func (e *Engine) Send(frame []byte, commandID string) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	maxRetries := e.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		e.rv.Reset()
		if err := e.adapter.DiscardInput(); err != nil {
			return err
		}
		if err := e.writeFrame(frame); err != nil {
			return err
		}

		b, ok := e.rv.WaitWithTimeout(e.cfg.SendTimeout)
		if !ok {
			ecrlog.Debugf("send %s: attempt %d/%d timed out", commandID, attempt, maxRetries)
			continue
		}
		switch b {
		case wire.ACK, wire.STX:
			if e.handlers.OnCommandAccepted != nil {
				e.handlers.OnCommandAccepted(commandID)
			}
			return nil
		case wire.NAK:
			ecrlog.Debugf("send %s: attempt %d/%d NAKed", commandID, attempt, maxRetries)
			continue
		default:
			ecrlog.Warnf("send %s: unexpected first byte 0x%02x", commandID, b)
			continue
		}
	}

	err := ErrSendExhausted.New(fmt.Sprintf("%d of %d attempts failed", maxRetries, maxRetries), nil).Native()
	if e.handlers.OnError != nil {
		e.handlers.OnError(err)
	}
	return err
}
