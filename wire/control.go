// Package wire implements the ECR-terminal byte framing and message codec:
// control-byte classification, the LRC-checked STX/ETX/ETB frame format, and
// the fixed-layout encoders/decoders for the wire message kinds listed in
// spec §3. It has no knowledge of sessions or ports; it only turns bytes
// into payloads and payloads into bytes.
package wire

import "github.com/ecrterm/ecrterm/ecrerr"

// Control bytes, spec §6.
const (
	STX byte = 0x02
	ETX byte = 0x03
	ETB byte = 0x17
	ACK byte = 0x06
	NAK byte = 0x15
	ENQ byte = 0x05
)

// FCS is the in-field terminator used to pad the auth-code slot, spec §4.5.
const FCS byte = 0x1C

// RS separates payer/payee receipts in extended transaction results, spec §6.
const RS byte = 0x1E

// FramingErr is the ErrorType for local, never-surfaced framing faults
// (spec §7: FramingError recovers silently with NAK/resync).
var FramingErr = ecrerr.NewErrorType("wire.FramingError")

var ErrBadLRC = FramingErr.Code("lrc mismatch")
var ErrShortMessage = FramingErr.Code("message shorter than minimum valid length")
var ErrUnknownMessageID = FramingErr.Code("unrecognized message id")

// LRC computes the XOR-reduce of data, e.g. payload ++ []byte{ETX}.
func LRC(data ...[]byte) byte {
	var v byte
	for _, d := range data {
		for _, b := range d {
			v ^= b
		}
	}
	return v
}

// BuildFrame wraps a logical payload into a single-part wire frame:
// STX · payload · ETX · LRC. The host side never emits multi-part frames
// (spec §4.1).
func BuildFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, STX)
	out = append(out, payload...)
	out = append(out, ETX)
	out = append(out, LRC(payload, []byte{ETX}))
	return out
}

// PartOutcome is the result of feeding one post-STX byte to a Reassembler.
type PartOutcome int

const (
	// PartPending means the part is still being accumulated.
	PartPending PartOutcome = iota
	// PartGoodMore means the part's LRC validated and it ended in ETB: more
	// parts follow. The caller should ACK and keep reading for the next STX.
	PartGoodMore
	// PartGoodFinal means the part's LRC validated and it was the last part
	// of the logical frame. The caller should ACK and dispatch Payload.
	PartGoodFinal
	// PartBadLRC means the LRC did not match. The caller should NAK and
	// resynchronize by ignoring bytes until the next STX.
	PartBadLRC
)

// Reassembler accumulates one logical payload out of one or more
// STX…ETB…ETX-delimited parts, per spec §4.1/§6. The caller is responsible
// for recognizing STX and handing subsequent bytes to Feed; call ResetPart
// whenever a (re)transmitted part begins.
type Reassembler struct {
	raw     []byte
	logical []byte
	sawETX  bool
}

// ResetPart discards any partially-accumulated part without touching
// previously-completed parts of the current logical frame. Call this when a
// new STX is observed, whether starting a fresh frame or retransmitting
// after a NAK.
func (r *Reassembler) ResetPart() {
	r.raw = r.raw[:0]
	r.sawETX = false
}

// Feed processes one byte following STX. Payload is non-nil only when
// outcome is PartGoodFinal, and is the complete reassembled logical frame.
func (r *Reassembler) Feed(b byte) (outcome PartOutcome, payload []byte) {
	if !r.sawETX {
		if b == ETX {
			r.sawETX = true
		} else {
			r.raw = append(r.raw, b)
		}
		return PartPending, nil
	}
	r.sawETX = false
	lrc := b
	if lrc != LRC(r.raw, []byte{ETX}) {
		return PartBadLRC, nil
	}
	body := r.raw
	more := len(body) > 0 && body[len(body)-1] == ETB
	if more {
		body = body[:len(body)-1]
	}
	r.logical = append(r.logical, body...)
	r.raw = nil
	if more {
		return PartGoodMore, nil
	}
	out := r.logical
	r.logical = nil
	return PartGoodFinal, out
}
