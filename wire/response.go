package wire

import (
	"bytes"
	"strconv"
)

func field(payload []byte, offset, width int) string {
	end := offset + width
	if end > len(payload) {
		end = len(payload)
	}
	if offset > len(payload) {
		offset = len(payload)
	}
	return string(payload[offset:end])
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// StatusEvent is the decoded "2" TransactionStatus message, spec §3/§4.4.
type StatusEvent struct {
	Phase      byte
	ResultCode string
	Info       string
}

// DecodeStatus decodes a "2" TransactionStatus payload: phase(1) ·
// resultCode(4) · info(variable).
func DecodeStatus(payload []byte) (StatusEvent, bool) {
	if len(payload) < 6 || payload[0] != MsgTransactionStatus {
		return StatusEvent{}, false
	}
	return StatusEvent{
		Phase:      payload[1],
		ResultCode: string(payload[2:6]),
		Info:       string(payload[6:]),
	}, true
}

// AbortResult is the decoded "7" AbortTransactionResult message.
type AbortResult struct {
	ResultCode string
	Aborted    bool
}

// DecodeAbortResult decodes a "7" AbortTransactionResult payload.
func DecodeAbortResult(payload []byte) (AbortResult, bool) {
	if len(payload) < 4 || payload[0] != MsgAbortTransactionResult {
		return AbortResult{}, false
	}
	code := string(payload[1:4])
	return AbortResult{ResultCode: code, Aborted: code == AbortResultAborted}, true
}

// CustomerBonusResult is the decoded "D" CustomerRequestResult message.
type CustomerBonusResult struct {
	Status         byte
	CustomerNumber string
	MemberClass    string
}

// DecodeCustomerBonusResult decodes a "D" payload: status(1) ·
// customerNumber(20) · memberClass(2).
func DecodeCustomerBonusResult(payload []byte) (CustomerBonusResult, bool) {
	if len(payload) < 24 || payload[0] != MsgCustomerRequestResult {
		return CustomerBonusResult{}, false
	}
	return CustomerBonusResult{
		Status:         payload[1],
		CustomerNumber: string(payload[2:22]),
		MemberClass:    string(payload[22:24]),
	}, true
}

// DeviceStatus is the decoded "S" DeviceStatus message.
type DeviceStatus struct {
	Raw            string
	ResultCode     string
	ReaderState    byte
	Environment    byte
	MessagePresent bool
	Data           string
}

// DecodeDeviceStatus decodes an "S" payload: S·resultCode(4)·reader(1)·
// environment(1)·messagePresent(1)·data(variable).
func DecodeDeviceStatus(payload []byte) (DeviceStatus, bool) {
	if len(payload) < 8 || payload[0] != MsgDeviceStatus {
		return DeviceStatus{}, false
	}
	return DeviceStatus{
		Raw:            string(payload),
		ResultCode:     string(payload[1:5]),
		ReaderState:    payload[5],
		Environment:    payload[6],
		MessagePresent: payload[7] != '0',
		Data:           string(payload[8:]),
	}, true
}

// VerifySignature is the decoded "F" message: a free-text prompt payload.
type VerifySignature struct {
	Text string
}

// DecodeVerifySignature decodes an "F" payload.
func DecodeVerifySignature(payload []byte) (VerifySignature, bool) {
	if len(payload) < 1 || payload[0] != MsgVerifySignature {
		return VerifySignature{}, false
	}
	return VerifySignature{Text: string(payload[1:])}, true
}

// IsWakeup reports whether payload is a "W" Wakeup message.
func IsWakeup(payload []byte) bool {
	return len(payload) >= 1 && payload[0] == MsgWakeup
}

// transactionResultOffsets holds the byte offsets that differ between the
// short and extended TransactionResult layouts, spec §6.
type transactionResultOffsets struct {
	amountWidth  int
	currency     int
	readerSerial int
	printReceipt int
	flags        int
	receipts     int
}

var shortOffsets = transactionResultOffsets{amountWidth: 7, currency: 124, readerSerial: 127, printReceipt: 136, flags: 137, receipts: 138}
var extOffsets = transactionResultOffsets{amountWidth: 12, currency: 129, readerSerial: 132, printReceipt: 141, flags: 142, receipts: 143}

// TransactionResult is the decoded "4"/"5" TransactionResult message,
// spec §6.
type TransactionResult struct {
	Extended                bool
	TransactionType         byte
	PaymentMethod           byte
	CardType                byte
	TransactionUsage        byte
	SettlementID            string
	MaskedCardNumber        string
	AID                     string
	TransactionCertificate  string
	TVR                     string
	TSI                     string
	TransactionID           string
	FilingCode              string
	Timestamp               string
	AmountMinor             int64
	Currency                string
	ReaderSerialNumber      string
	PrintPayeeReceipt       bool
	Flags                   byte
	PayerReceipt            []byte
	PayeeReceipt            []byte
}

// DecodeTransactionResult decodes a "4" (short) or "5" (extended)
// TransactionResult payload. It returns ok=false for anything shorter than
// MinTransactionResultLen, per spec §8 ("dropped with a diagnostic and no
// event").
func DecodeTransactionResult(payload []byte) (TransactionResult, bool) {
	if len(payload) < MinTransactionResultLen {
		return TransactionResult{}, false
	}
	if payload[0] != MsgTransactionResult && payload[0] != MsgTransactionResultExt {
		return TransactionResult{}, false
	}
	extended := payload[0] == MsgTransactionResultExt
	off := shortOffsets
	if extended {
		off = extOffsets
	}

	r := TransactionResult{
		Extended:               extended,
		TransactionType:        payload[1],
		PaymentMethod:          payload[2],
		CardType:               payload[3],
		TransactionUsage:       payload[4],
		SettlementID:           field(payload, 5, 2),
		MaskedCardNumber:       field(payload, 7, 19),
		AID:                    field(payload, 26, 32),
		TransactionCertificate: field(payload, 58, 16),
		TVR:                    field(payload, 74, 10),
		TSI:                    field(payload, 84, 4),
		TransactionID:          field(payload, 88, 5),
		FilingCode:             field(payload, 93, 12),
		Timestamp:              field(payload, 105, 12),
		AmountMinor:            parseInt(field(payload, 117, off.amountWidth)),
		Currency:               field(payload, off.currency, 3),
		ReaderSerialNumber:     field(payload, off.readerSerial, 9),
	}
	if off.printReceipt < len(payload) {
		r.PrintPayeeReceipt = payload[off.printReceipt] != '0'
	}
	if off.flags < len(payload) {
		r.Flags = payload[off.flags]
	}
	if off.receipts < len(payload) {
		tail := payload[off.receipts:]
		tail = bytes.TrimRight(tail, string(ETX))
		if idx := bytes.IndexByte(tail, RS); idx >= 0 {
			r.PayerReceipt = tail[:idx]
			r.PayeeReceipt = tail[idx+1:]
		} else {
			r.PayerReceipt = tail
		}
	}
	return r, true
}
