package wire

import "strconv"

// TransactionRequest is the caller-supplied content of an 80-byte
// transaction request, spec §4.5. Fixed-zero fields (otherAmount,
// forceOnline, manual, paymentRestriction, surcharge, lookForDOB, flags,
// rfu, accountingSeq) are not exposed; EncodeTransactionRequest always
// writes them as zero.
type TransactionRequest struct {
	Type           byte
	AmountMinor    int64  // zero for Reversal/Retrieve
	TransactionID  string // placeholder "00000" for Payment/Refund; verbatim for Reversal/Retrieve
	BonusHandled   bool
	AuthCode       string // manual-entry auth code, empty unless resending after a 2003 prompt
	Timestamp      string // yyMMddHHmmss; empty encodes as all-zero; verbatim for Reversal/Retrieve
	Serial         string
	Currency       string // ISO 4217 numeric, defaults to DefaultCurrency
	AccountingDate string // yyMMdd
	ECRNumber      string
}

func leftPadZero(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = '0'
	}
	if len(s) >= width {
		copy(out, s[len(s)-width:])
	} else {
		copy(out[width-len(s):], s)
	}
	return out
}

func zeroPadInt(n int64, width int) []byte {
	return leftPadZero(strconv.FormatInt(n, 10), width)
}

func spacePadTruncate(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = ' '
	}
	if len(s) > width {
		s = s[:width]
	}
	copy(out, s)
	return out
}

func padAuthCode(code string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = '0'
	}
	if len(code) > width-1 {
		code = code[:width-1]
	}
	copy(out, code)
	out[len(code)] = FCS
	return out
}

// EncodeTransactionRequest builds the exact 80-byte fixed-layout payload
// described in spec §4.5/§6. The returned bytes do not include framing
// (STX/ETX/LRC); pass them to BuildFrame before writing to the port.
func EncodeTransactionRequest(r TransactionRequest) []byte {
	currency := r.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	timestamp := r.Timestamp
	if timestamp == "" {
		timestamp = "000000000000"
	}
	bonusHandled := byte('0')
	if r.BonusHandled {
		bonusHandled = '1'
	}

	out := make([]byte, 0, TransactionRequestLen)
	out = append(out, CmdTransactionRequest)
	out = append(out, r.Type)
	out = append(out, zeroPadInt(r.AmountMinor, 12)...)
	out = append(out, leftPadZero("", 12)...) // otherAmount, always zero
	out = append(out, leftPadZero(r.TransactionID, 5)...)
	out = append(out, '0')           // forceOnline
	out = append(out, '0')           // manual
	out = append(out, bonusHandled)
	out = append(out, padAuthCode(r.AuthCode, 7)...)
	out = append(out, leftPadZero(timestamp, 12)...)
	out = append(out, leftPadZero(r.Serial, 9)...)
	out = append(out, '0') // paymentRestriction
	out = append(out, '0') // surcharge
	out = append(out, '0') // lookForDOB
	out = append(out, '0') // flags
	out = append(out, '0') // rfu
	out = append(out, leftPadZero(currency, 3)...)
	out = append(out, leftPadZero(r.AccountingDate, 6)...)
	out = append(out, '0') // accountingSeq
	out = append(out, leftPadZero(r.ECRNumber, 3)...)
	return out
}

// EncodeAbort builds the short "abort current transaction" payload.
func EncodeAbort() []byte {
	return []byte{CmdAbort, '2'}
}

// EncodeAcceptReject builds the "accept/reject paused transaction" payload.
func EncodeAcceptReject(transactionID string, accept bool) []byte {
	out := make([]byte, 0, 16)
	out = append(out, CmdAcceptReject)
	out = append(out, leftPadZero(transactionID, 5)...)
	if accept {
		out = append(out, '1')
	} else {
		out = append(out, '9')
	}
	out = append(out, leftPadZero("", 9)...)
	return out
}

// Display options for EncodeDisplayText.
const (
	DisplayClear byte = '0'
	DisplaySmall byte = '1'
	DisplayBig   byte = '2'
)

const displayLineWidth = 21

// EncodeDisplayText builds the "display text" payload. Lines longer than 21
// bytes force a downgrade to small font and are truncated, spec §4.5/§8.
func EncodeDisplayText(option byte, line1, line2 string) []byte {
	if option == DisplayBig && (len(line1) > displayLineWidth || len(line2) > displayLineWidth) {
		option = DisplaySmall
	}
	out := make([]byte, 0, 2+2*displayLineWidth+4)
	out = append(out, CmdDisplayText, option)
	out = append(out, spacePadTruncate(line1, displayLineWidth)...)
	out = append(out, spacePadTruncate(line2, displayLineWidth)...)
	out = append(out, spacePadTruncate("", 4)...)
	return out
}

// EncodeAuxiliaryMode builds the "set/reset auxiliary accept mode" payload.
func EncodeAuxiliaryMode(enable bool) []byte {
	v := byte('0')
	if enable {
		v = '1'
	}
	return []byte{CmdAuxiliaryMode, '2', v}
}

// Device-control query kinds for EncodeDeviceControl.
const (
	DeviceControlStatus  byte = '0'
	DeviceControlTCS     byte = '1'
	DeviceControlVersion byte = '2'
)

// EncodeDeviceControl builds a device-control query payload.
func EncodeDeviceControl(query byte) []byte {
	return []byte{CmdDeviceControl, '0', query}
}

// Bonus-card mode activation kinds for EncodeBonusCardMode.
const (
	BonusModeDisable byte = '0'
	BonusModeEnable  byte = '1'
	BonusModeEnableAutoReply byte = '2'
)

// EncodeBonusCardMode builds the bonus-card-mode payload.
func EncodeBonusCardMode(activation byte) []byte {
	return []byte{CmdBonusCardMode, activation, '0', '0', '0'}
}

// EncodeCustomerRequest builds the customer-bonus-info-request payload.
// activate is carried verbatim as '1' or '0'; some terminal firmwares
// ignore it (spec §9 open question).
func EncodeCustomerRequest(activate bool) []byte {
	v := byte('0')
	if activate {
		v = '1'
	}
	return []byte{CmdCustomerRequest, v}
}

// Handshake is the raw (unframed) ENQ byte used for testTerminal.
var Handshake = []byte{ENQ}
