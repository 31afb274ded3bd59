package session

import "github.com/ecrterm/ecrterm/ecrerr"

// ConflictErr is spec §7's SessionConflict: a session-initiating operation
// refused because another session is already active.
var ConflictErr = ecrerr.NewErrorType("session.SessionConflict")
var ErrSessionConflict = ConflictErr.Code("another session is already active")

// ValidationErr is spec §7's ValidationError: bad amount, or a bad
// transactionId/length for Accept/Reject.
var ValidationErr = ecrerr.NewErrorType("session.ValidationError")
var ErrInvalidAmount = ValidationErr.Code("amount must be greater than zero")
var ErrInvalidTransactionID = ValidationErr.Code("transactionId is empty or too long")

// conflictInfo renders the offending session's id/kind/state/txId/createdAt
// into the message chain, spec §7 "carries offending session's
// id/kind/state/txId/createdAt".
func conflictInfo(s *Session) string {
	return string(s.Kind) + " " + string(s.State) + " " + s.SessionID + " " + s.TransactionID + " " + s.CreatedAt.Format("2006-01-02T15:04:05")
}
