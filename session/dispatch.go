package session

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ecrterm/ecrterm/archive"
	"github.com/ecrterm/ecrterm/ecrerr"
	"github.com/ecrterm/ecrterm/ecrlog"
	"github.com/ecrterm/ecrterm/event"
	"github.com/ecrterm/ecrterm/wire"
)

// onFrame is the transport.Handlers.OnFrame callback: it classifies a
// completed payload by message-ID and routes it, spec §3's "Wire message
// kinds" / data-flow diagram in §2.
func (c *Coordinator) onFrame(payload []byte) {
	c.metrics.framesReceived.Inc()
	if len(payload) == 0 {
		return
	}
	if wire.IsWakeup(payload) {
		c.bus.EmitWakeup()
		return
	}
	switch payload[0] {
	case wire.MsgTransactionStatus:
		if se, ok := wire.DecodeStatus(payload); ok {
			c.handleStatus(se)
		}
	case wire.MsgTransactionResult, wire.MsgTransactionResultExt:
		if tr, ok := wire.DecodeTransactionResult(payload); ok {
			c.handleTransactionResult(tr)
		} else {
			ecrlog.Warnf("coordinator: dropping undersized transaction result (%d bytes)", len(payload))
		}
	case wire.MsgAbortTransactionResult:
		if ar, ok := wire.DecodeAbortResult(payload); ok {
			c.handleAbortResult(ar)
		}
	case wire.MsgCustomerRequestResult:
		if cb, ok := wire.DecodeCustomerBonusResult(payload); ok {
			c.handleCustomerBonusResult(cb)
		}
	case wire.MsgVerifySignature:
		if vs, ok := wire.DecodeVerifySignature(payload); ok {
			c.handleVerifySignature(vs)
		}
	case wire.MsgDeviceStatus:
		if ds, ok := wire.DecodeDeviceStatus(payload); ok {
			c.bus.EmitDeviceStatus(ds)
		}
	default:
		ecrlog.Debugf("coordinator: unrecognized message id 0x%02x", payload[0])
	}
}

func (c *Coordinator) onCommandAccepted(commandID string) {
	c.metrics.commandsAccepted.Inc()
	c.bus.EmitCommandAccepted(event.CommandAccepted{CommandID: commandID})
}

// onError is the transport.Handlers.OnError callback, spec §7. For a
// CommunicationError the engine has already torn itself down by the time
// this fires and the next public operation reopens lazily; for a
// TimeoutError the engine is still running. In both cases, if a session was
// Running, it is marked Error so the ledger reflects the abandoned operation.
func (c *Coordinator) onError(err error) {
	c.metrics.sendErrors.Inc()
	if sess := c.ledger.lastRunning(); sess != nil {
		c.ledger.update(sess.SessionID, func(s *Session) {
			s.State = StateError
			s.Err = err
		})
		c.metrics.sessionsErrored.Inc()
	}
	c.bus.EmitError(event.Error{Err: err})
}

func idOrEmpty(s *Session) string {
	if s == nil {
		return ""
	}
	return s.SessionID
}

// handleStatus absorbs a "2" TransactionStatus message: records the
// session's transactionId once a phase-A status is seen, forwards a Status
// event unconditionally (spec §9 "the engine MUST forward every
// StatusChanged"), then applies bonus interleave or user-prompt routing
// for the result codes spec §4.6 names.
func (c *Coordinator) handleStatus(se wire.StatusEvent) {
	sess := c.ledger.lastRunning()

	if se.Phase == wire.PhaseInitialized && sess != nil && sess.TransactionID == wire.TransactionIDPlaceholder && se.Info != "" {
		txID := se.Info
		c.ledger.update(sess.SessionID, func(s *Session) { s.TransactionID = txID })
		c.bus.EmitInitialized(event.Initialized{SessionID: sess.SessionID, TransactionID: txID})
	}

	if sess != nil {
		c.ledger.update(sess.SessionID, func(s *Session) { s.LastStatusCode = se.ResultCode })
	}
	c.bus.EmitStatus(event.Status{SessionID: idOrEmpty(sess), Phase: se.Phase, ResultCode: se.ResultCode, Info: se.Info})

	switch se.ResultCode {
	case wire.ResultBonusCardFound:
		c.handleBonusInterleave(sess, se)
	case wire.ResultBonusCardOnly:
		c.handleBonusCardOnly(sess, se)
	case wire.ResultManualAuthCode, wire.ResultManualLastFour:
		c.routeManualPrompt(sess, se)
	case wire.ResultConfirm2004, wire.ResultConfirm2005, wire.ResultConfirm2006, wire.ResultConfirm2012, wire.ResultConfirm2022:
		c.routeConfirmationPrompt(sess, se)
	default:
		if isTerminalAbortCode(se.ResultCode) {
			c.terminalAbort(sess, se.ResultCode, se.Phase, se.Info)
		}
	}
}

// isTerminalAbortCode reports whether code is one of spec §4.4's "1xxx,
// 9xxx (any not otherwise handled): publish TerminalAbort" codes.
func isTerminalAbortCode(code string) bool {
	return len(code) == 4 && (code[0] == '1' || code[0] == '9')
}

// terminalAbort moves sess to StateTerminalAborted and publishes a
// TerminalAbort event, spec §4.4's 1xxx/9xxx status codes and the 2002
// bonus-card-only status. Distinct from StateAborted, which is reserved
// for an abort the host itself requested via abortTransaction.
func (c *Coordinator) terminalAbort(sess *Session, code string, phase byte, info string) {
	if sess != nil {
		c.ledger.update(sess.SessionID, func(s *Session) {
			s.State = StateTerminalAborted
			s.CompletedAt = time.Now()
		})
		c.metrics.sessionsAborted.Inc()
	}
	c.bus.EmitTerminalAbort(event.TerminalAbort{SessionID: idOrEmpty(sess), Code: code, Phase: phase, Info: info})
}

// handleBonusCardOnly implements spec §4.4's 2002 "bonus-card-only" status:
// the bonus fields are recorded, the session is terminal-aborted, bonus
// mode is disabled after a short delay, and both a Bonus and a
// TerminalAbort event are published.
func (c *Coordinator) handleBonusCardOnly(sess *Session, se wire.StatusEvent) {
	b := Bonus{StatusCode: se.ResultCode, StatusText: trimSpaceRight(se.Info)}
	if sess != nil {
		c.ledger.update(sess.SessionID, func(s *Session) { s.Bonus = b })
	}
	c.bus.EmitBonus(event.Bonus{SessionID: idOrEmpty(sess), StatusCode: b.StatusCode, StatusText: b.StatusText})
	c.terminalAbort(sess, se.ResultCode, se.Phase, se.Info)
	time.AfterFunc(c.cfg.BonusDisableDelay, func() {
		_ = c.DisableBonusCardMode()
	})
}

// handleBonusInterleave implements spec §4.6 "Bonus interleave": the
// current Payment is closed as BonusDetectedAndHalted and a second Payment
// session is started immediately for the same amount/transactionId with
// bonusHandled=true.
func (c *Coordinator) handleBonusInterleave(sess *Session, se wire.StatusEvent) {
	if sess == nil || sess.Kind != KindPayment {
		return
	}
	b := Bonus{CustomerNumber: trimSpaceRight(se.Info), StatusCode: se.ResultCode}
	c.ledger.update(sess.SessionID, func(s *Session) {
		s.State = StateBonusDetectedAndHalted
		s.Bonus = b
	})
	c.metrics.bonusInterleaves.Inc()

	next := c.newSession(KindPayment, sess.AmountMinor, sess.TransactionID, true)
	next.bonusPredecessorID = sess.SessionID
	// The halted predecessor would make the session-initiating guard refuse
	// its own continuation, so the second leg is inserted directly.
	c.ledger.insert(next)
	go c.sendPayment(next, "")
}

// handleVerifySignature treats an "F" prompt as a confirmation-only prompt
// under the synthetic retry code, spec §4.4/§4.6.
func (c *Coordinator) handleVerifySignature(vs wire.VerifySignature) {
	sess := c.ledger.lastRunning()
	c.routeConfirmationPrompt(sess, wire.StatusEvent{ResultCode: wire.RetryTransactionCode, Info: vs.Text})
}

func (c *Coordinator) routeManualPrompt(sess *Session, se wire.StatusEvent) {
	accepted := false
	defer func() {
		outcome := "declined"
		if accepted {
			outcome = "accepted"
		}
		c.policy.PostProcessUserPrompt(se.ResultCode, outcome)
	}()

	if !c.policy.AllowManualAuthorization(se.ResultCode) {
		c.abortCurrent(sess)
		return
	}
	value, ok := c.policy.RequestManualInput(se.ResultCode, se.Info)
	if !ok || !validateManualInput(se.ResultCode, value) {
		c.abortCurrent(sess)
		return
	}
	accepted = true
	switch se.ResultCode {
	case wire.ResultManualAuthCode:
		if sess != nil {
			go c.sendPayment(sess, value)
		}
	case wire.ResultManualLastFour:
		go c.rerunLastPayment()
	}
}

func (c *Coordinator) routeConfirmationPrompt(sess *Session, se wire.StatusEvent) {
	accept := false
	defer func() {
		outcome := "declined"
		if accept {
			outcome = "accepted"
		}
		c.policy.PostProcessUserPrompt(se.ResultCode, outcome)
	}()

	if !c.policy.AllowUserPrompt(se.ResultCode) {
		c.abortCurrent(sess)
		return
	}
	accept = c.policy.RequestConfirmation(se.ResultCode, se.Info)

	if se.ResultCode == wire.ResultConfirm2022 {
		txID := se.Info
		if txID == "" && sess != nil {
			txID = sess.TransactionID
		}
		go c.sendAcceptReject(txID, accept)
		return
	}
	if accept {
		go c.rerunLastPayment()
	} else {
		c.abortCurrent(sess)
	}
}

func (c *Coordinator) abortCurrent(sess *Session) {
	if sess == nil {
		return
	}
	go c.sendFrame(wire.EncodeAbort(), "Abort")
}

// handleAbortResult finalizes the session an AbortTransaction targeted and
// schedules the post-abort bonus-mode disable from spec §9.
func (c *Coordinator) handleAbortResult(ar wire.AbortResult) {
	sess := c.ledger.lastRunning()
	if sess == nil {
		sess = c.ledger.last()
	}
	if sess != nil && ar.Aborted {
		c.ledger.update(sess.SessionID, func(s *Session) {
			s.State = StateAborted
			s.CompletedAt = time.Now()
		})
		c.metrics.sessionsAborted.Inc()
	}
	c.bus.EmitAbortResult(event.AbortResult{SessionID: idOrEmpty(sess), ResultCode: ar.ResultCode, Aborted: ar.Aborted})

	if ar.Aborted && c.bonusModeEnabled.Load() {
		time.AfterFunc(c.cfg.BonusDisableDelay, func() {
			_ = c.DisableBonusCardMode()
		})
	}
}

func (c *Coordinator) handleCustomerBonusResult(cb wire.CustomerBonusResult) {
	sess := c.ledger.lastRunning()
	if sess == nil {
		sess = c.ledger.last()
	}
	b := Bonus{
		CustomerNumber: trimSpaceRight(cb.CustomerNumber),
		MemberClass:    cb.MemberClass,
		StatusCode:     string(cb.Status),
	}
	if sess != nil {
		c.ledger.update(sess.SessionID, func(s *Session) { s.Bonus = b })
	}
	c.bus.EmitBonus(event.Bonus{
		SessionID:      idOrEmpty(sess),
		CustomerNumber: b.CustomerNumber,
		MemberClass:    b.MemberClass,
		StatusCode:     b.StatusCode,
	})
}

// handleTransactionResult finalizes the session a "4"/"5" result belongs
// to, enriches it with predecessor bonus info for the second leg of a
// bonus interleave (spec §4.6), emits the Result event, and persists it if
// an archive.Store is configured.
func (c *Coordinator) handleTransactionResult(tr wire.TransactionResult) {
	sess := c.ledger.lastRunning()
	if sess == nil {
		sess = c.ledger.last()
	}

	now := time.Now()
	var bonus *event.Bonus
	if sess != nil {
		predID := sess.bonusPredecessorID
		c.ledger.update(sess.SessionID, func(s *Session) {
			s.State = StateCompleted
			s.CompletedAt = now
			s.ResultTimestamp = tr.Timestamp
			if s.TransactionID == wire.TransactionIDPlaceholder {
				s.TransactionID = tr.TransactionID
			}
		})
		c.metrics.sessionsCompleted.Inc()

		b := sess.Bonus
		if predID != "" {
			if pred := c.ledger.get(predID); pred != nil {
				b = pred.Bonus
			}
		}
		if b != (Bonus{}) {
			bonus = &event.Bonus{SessionID: sess.SessionID, CustomerNumber: b.CustomerNumber, MemberClass: b.MemberClass, StatusCode: b.StatusCode, StatusText: b.StatusText}
		}
	}

	kind := "Payment"
	if sess != nil {
		kind = string(sess.Kind)
	}
	ecrlog.Debugf("coordinator: %s completed, amount=%s", kind, humanize.Comma(tr.AmountMinor))
	c.bus.EmitResult(event.Result{SessionID: idOrEmpty(sess), Kind: kind, Decoded: tr, Bonus: bonus})

	if c.cfg.Archive != nil {
		c.archiveResult(sess, tr, bonus)
	}
}

func (c *Coordinator) archiveResult(sess *Session, tr wire.TransactionResult, bonus *event.Bonus) {
	rec := archive.Record{
		Timestamp:        now12(tr.Timestamp),
		TransactionID:    tr.TransactionID,
		TransactionType:  string(tr.TransactionType),
		AmountMinor:      tr.AmountMinor,
		Currency:         tr.Currency,
		CardType:         string(tr.CardType),
		MaskedCardNumber: tr.MaskedCardNumber,
		AID:              tr.AID,
		PayerReceipt:     tr.PayerReceipt,
		PayeeReceipt:     tr.PayeeReceipt,
		Flags:            tr.Flags,
	}
	if sess != nil {
		rec.Kind = string(sess.Kind)
	}
	if bonus != nil {
		rec.BonusCustomerNumber = bonus.CustomerNumber
		rec.BonusMemberClass = bonus.MemberClass
		rec.BonusStatusCode = bonus.StatusCode
		rec.BonusStatusText = bonus.StatusText
	}
	if err := c.cfg.Archive.Save(rec); err != nil {
		ecrlog.Warnf("coordinator: archive save failed: %v", ecrerr.E(err))
	}
}

// now12 parses a yyMMddHHmmss timestamp as local time, falling back to the
// current time if the terminal sent something unparseable.
func now12(s string) time.Time {
	t, err := time.ParseInLocation("060102150405", s, time.Local)
	if err != nil {
		return time.Now()
	}
	return t
}

func trimSpaceRight(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}
