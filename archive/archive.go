// Package archive is the Record Archive Adapter, spec §2 item 9: an
// interface-only collaborator the Session Coordinator hands a completed
// result to. The protocol engine never depends on a concrete format; the
// embedder picks a Store (or none) at construction time.
package archive

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Record is everything the Coordinator knows about a completed session,
// shaped for the plain-text layout spec §6 gives byte-exact rules for.
type Record struct {
	Timestamp       time.Time
	TransactionID   string
	TransactionType string
	Kind            string // "Payment", "Refund", "Reversal", "Retrieve"
	AmountMinor     int64
	Currency        string
	CardType        string
	MaskedCardNumber string
	AID             string
	PayerReceipt    []byte
	PayeeReceipt    []byte
	Flags           byte
	BonusCustomerNumber string
	BonusMemberClass    string
	BonusStatusCode     string
	BonusStatusText     string
	Sequence        int // disambiguator for >1 record in the same second, the filename's "-<n>"
}

// Store is the Record Archive Adapter contract. Save must not block the
// caller for long; Coordinator calls it synchronously on session
// completion, so a Store that needs to do slow I/O should queue internally.
type Store interface {
	Save(Record) error
}

// FileName builds the spec §6 filename:
// yyyy-MM-dd-HH-mm-ss-<txId>-<txType>[-<n>].ecrtn.txt
func FileName(r Record) string {
	base := fmt.Sprintf("%s-%s-%s", r.Timestamp.Format("2006-01-02-15-04-05"), r.TransactionID, r.TransactionType)
	if r.Sequence > 0 {
		base = fmt.Sprintf("%s-%d", base, r.Sequence)
	}
	return base + ".ecrtn.txt"
}

// value renders a record field per spec §6's marker rules: empty values
// stay empty, "null" is reserved and always prefixed, and anything
// containing a control byte, a newline, or an '=' is base64-encoded so the
// text format stays line-oriented.
func value(s string) string {
	if s == "" {
		return ""
	}
	if s == "null" {
		return "null:" + s
	}
	if needsEncoding(s) {
		return "b64:" + base64.StdEncoding.EncodeToString([]byte(s))
	}
	return s
}

func needsEncoding(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '\n' || b == '\r' || b == '=' || b < 0x20 {
			return true
		}
	}
	return false
}

// binValue always base64-encodes, for the fields spec §6 says are "always
// base64-encoded" regardless of content (receipts, flags).
func binValue(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "b64:" + base64.StdEncoding.EncodeToString(b)
}

// Render produces the ini-style text body for r: [TransactionInfo], an
// optional [BonusInfo] when any bonus field is set, and [ExtraInfo] for the
// receipts/flags spec §6 calls out separately.
func Render(r Record) string {
	var sb strings.Builder

	sb.WriteString("[TransactionInfo]\n")
	fmt.Fprintf(&sb, "kind=%s\n", value(r.Kind))
	fmt.Fprintf(&sb, "transactionId=%s\n", value(r.TransactionID))
	fmt.Fprintf(&sb, "transactionType=%s\n", value(r.TransactionType))
	fmt.Fprintf(&sb, "amountMinor=%d\n", r.AmountMinor)
	fmt.Fprintf(&sb, "currency=%s\n", value(r.Currency))
	fmt.Fprintf(&sb, "cardType=%s\n", value(r.CardType))
	fmt.Fprintf(&sb, "maskedCardNumber=%s\n", value(r.MaskedCardNumber))
	fmt.Fprintf(&sb, "aid=%s\n", value(r.AID))
	fmt.Fprintf(&sb, "timestamp=%s\n", r.Timestamp.Format("2006-01-02T15:04:05"))

	if r.BonusCustomerNumber != "" || r.BonusMemberClass != "" || r.BonusStatusCode != "" || r.BonusStatusText != "" {
		sb.WriteString("\n[BonusInfo]\n")
		fmt.Fprintf(&sb, "customerNumber=%s\n", value(r.BonusCustomerNumber))
		fmt.Fprintf(&sb, "memberClass=%s\n", value(r.BonusMemberClass))
		fmt.Fprintf(&sb, "statusCode=%s\n", value(r.BonusStatusCode))
		fmt.Fprintf(&sb, "statusText=%s\n", value(r.BonusStatusText))
	}

	sb.WriteString("\n[ExtraInfo]\n")
	fmt.Fprintf(&sb, "payerReceipt=%s\n", binValue(r.PayerReceipt))
	fmt.Fprintf(&sb, "payeeReceipt=%s\n", binValue(r.PayeeReceipt))
	fmt.Fprintf(&sb, "flags=%s\n", binValue([]byte{r.Flags}))

	return sb.String()
}
