package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ecrterm/ecrterm/archive"
	"github.com/ecrterm/ecrterm/ecrlog"
	"github.com/ecrterm/ecrterm/event"
	"github.com/ecrterm/ecrterm/transport"
	"github.com/ecrterm/ecrterm/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// Config is the Coordinator's own tunables, layered on top of the
// transport.Config the embedder already supplied to the engine.
type Config struct {
	LedgerCapacity    int
	BonusDisableDelay time.Duration
	Serial            string
	Currency          string
	ECRNumber         string
	Policy            Policy
	MetricsRegisterer prometheus.Registerer // nil registers nowhere
	Archive           archive.Store         // nil disables persistence
}

// DefaultConfig matches spec §9's stated defaults plus the ambient ECR
// fields every TransactionRequest needs.
func DefaultConfig() Config {
	return Config{
		LedgerCapacity:    defaultLedgerCapacity,
		BonusDisableDelay: 500 * time.Millisecond,
		Currency:          wire.DefaultCurrency,
		Policy:            DefaultPolicy(),
	}
}

// Coordinator is the Session Coordinator, spec §2 item 7 / §4.6. It
// exclusively owns the session ledger and the Protocol engine
// (transport.Engine), and is the sole place wire events turn into typed
// events on the Bus.
type Coordinator struct {
	engine  *transport.Engine
	bus     *event.Bus
	ledger  *ledger
	policy  Policy
	cfg     Config
	metrics *Metrics

	nextID uint64

	bonusModeEnabled atomic.Bool
}

// New builds a Coordinator bound to engine. It installs its own
// transport.Handlers on engine — engine must not already be Start()ed with
// different handlers. The Coordinator does not open the port; the first
// public operation does, lazily, per spec §3.
func New(engine *transport.Engine, bus *event.Bus, cfg Config) *Coordinator {
	if cfg.LedgerCapacity <= 0 {
		cfg.LedgerCapacity = defaultLedgerCapacity
	}
	if cfg.Currency == "" {
		cfg.Currency = wire.DefaultCurrency
	}
	if cfg.BonusDisableDelay <= 0 {
		cfg.BonusDisableDelay = 500 * time.Millisecond
	}
	c := &Coordinator{
		engine:  engine,
		bus:     bus,
		ledger:  newLedger(cfg.LedgerCapacity),
		policy:  cfg.Policy.fillDefaults(),
		cfg:     cfg,
		metrics: newMetrics(cfg.MetricsRegisterer),
	}
	engine.SetHandlers(transport.Handlers{
		OnFrame:           c.onFrame,
		OnCommandAccepted: c.onCommandAccepted,
		OnError:           c.onError,
	})
	return c
}

func (c *Coordinator) newSessionID() string {
	return fmt.Sprintf("S%08d", atomic.AddUint64(&c.nextID, 1))
}

func (c *Coordinator) newSession(kind Kind, amountMinor int64, transactionID string, bonusHandled bool) *Session {
	return &Session{
		SessionID:     c.newSessionID(),
		Kind:          kind,
		AmountMinor:   amountMinor,
		TransactionID: transactionID,
		State:         StateCreated,
		CreatedAt:     time.Now(),
		BonusHandled:  bonusHandled,
	}
}

func (c *Coordinator) ensureStarted() error {
	if err := c.engine.Start(); err != nil {
		return err
	}
	return nil
}

// emitSyncError publishes err (already in Native() error form) on the
// error channel and returns it, for validation/conflict failures that are
// detected before any wire traffic, spec §7 "no error is silently
// swallowed at the component boundary".
func (c *Coordinator) emitSyncError(err error) error {
	c.bus.EmitError(event.Error{Err: err})
	return err
}

// --- non-session operations (spec §4.6: "always accepted") ---

// TestTerminal sends the raw ENQ handshake byte, spec §8 scenario 1.
func (c *Coordinator) TestTerminal() error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.send(wire.Handshake, "Test")
	return nil
}

// AbortTransaction sends the short abort-current-transaction command.
func (c *Coordinator) AbortTransaction() error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeAbort(), "Abort")
	return nil
}

// RetrieveTCSMessage queries the terminal's pending TCS message.
func (c *Coordinator) RetrieveTCSMessage() error {
	return c.sendDeviceControl(wire.DeviceControlTCS, "DeviceControl:TCS")
}

// RequestTerminalStatus queries the terminal's current status.
func (c *Coordinator) RequestTerminalStatus() error {
	return c.sendDeviceControl(wire.DeviceControlStatus, "DeviceControl:Status")
}

// RequestTerminalVersion queries the terminal's firmware version.
func (c *Coordinator) RequestTerminalVersion() error {
	return c.sendDeviceControl(wire.DeviceControlVersion, "DeviceControl:Version")
}

func (c *Coordinator) sendDeviceControl(query byte, commandID string) error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeDeviceControl(query), commandID)
	return nil
}

// EnableBonusCardMode turns on bonus-card detection; autoReply selects the
// auto-acknowledging activation byte.
func (c *Coordinator) EnableBonusCardMode(autoReply bool) error {
	activation := wire.BonusModeEnable
	if autoReply {
		activation = wire.BonusModeEnableAutoReply
	}
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	c.bonusModeEnabled.Store(true)
	go c.sendFrame(wire.EncodeBonusCardMode(activation), "BonusMode:Enable")
	return nil
}

// DisableBonusCardMode turns off bonus-card detection.
func (c *Coordinator) DisableBonusCardMode() error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	c.bonusModeEnabled.Store(false)
	go c.sendFrame(wire.EncodeBonusCardMode(wire.BonusModeDisable), "BonusMode:Disable")
	return nil
}

// RequestBonusCardInfo asks for the currently-presented customer's bonus
// info. stopActive is passed through verbatim; some firmwares ignore it,
// spec §9 open question.
func (c *Coordinator) RequestBonusCardInfo(stopActive bool) error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeCustomerRequest(stopActive), "CustomerRequest")
	return nil
}

// DisplayText shows two lines of text on the terminal's display.
func (c *Coordinator) DisplayText(line1, line2 string, bigFont bool) error {
	option := wire.DisplaySmall
	if bigFont {
		option = wire.DisplayBig
	}
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeDisplayText(option, line1, line2), "DisplayText")
	return nil
}

// ClearDisplayText clears the terminal's display.
func (c *Coordinator) ClearDisplayText() error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeDisplayText(wire.DisplayClear, "", ""), "DisplayText:Clear")
	return nil
}

// EnableAuxiliaryMode puts the terminal into auxiliary accept mode.
func (c *Coordinator) EnableAuxiliaryMode() error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeAuxiliaryMode(true), "Auxiliary:Enable")
	return nil
}

// DisableAuxiliaryMode takes the terminal out of auxiliary accept mode.
func (c *Coordinator) DisableAuxiliaryMode() error {
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendFrame(wire.EncodeAuxiliaryMode(false), "Auxiliary:Disable")
	return nil
}

// AcceptTransaction accepts a transaction paused awaiting host decision.
func (c *Coordinator) AcceptTransaction(transactionID string) error {
	return c.acceptReject(transactionID, true)
}

// RejectTransaction rejects a transaction paused awaiting host decision.
func (c *Coordinator) RejectTransaction(transactionID string) error {
	return c.acceptReject(transactionID, false)
}

func (c *Coordinator) acceptReject(transactionID string, accept bool) error {
	if !validTransactionID(transactionID) {
		return c.emitSyncError(ErrInvalidTransactionID.New(transactionID, nil).Native())
	}
	if err := c.ensureStarted(); err != nil {
		return c.emitSyncError(err)
	}
	go c.sendAcceptReject(transactionID, accept)
	return nil
}

func validTransactionID(id string) bool {
	return id != "" && len(id) <= 5
}

// Disconnect is the sole way to stop all activity, spec §5 "Cancellation &
// timeouts". It tears down the Protocol engine and closes the event Bus;
// the Coordinator must not be used afterward.
func (c *Coordinator) Disconnect() {
	c.engine.Teardown()
	c.bus.Close()
}

// --- session-initiating operations (spec §4.6: guarded) ---

// RunPayment initiates a Payment session for amountMinor (minor currency
// units). bonusHandled is normally false; the Coordinator sets it true
// itself for the second leg of a bonus interleave. A caller-supplied
// sessionID overrides the generated one; pass "" to let the Coordinator
// assign one.
func (c *Coordinator) RunPayment(amountMinor int64, bonusHandled bool, sessionID string) (string, error) {
	if amountMinor <= 0 {
		return "", c.emitSyncError(ErrInvalidAmount.New(fmt.Sprintf("%d", amountMinor), nil).Native())
	}
	sess := c.newSession(KindPayment, amountMinor, wire.TransactionIDPlaceholder, bonusHandled)
	if sessionID != "" {
		sess.SessionID = sessionID
	}
	if err := c.begin(sess); err != nil {
		return "", err
	}
	go c.sendPayment(sess, "")
	return sess.SessionID, nil
}

// Refund initiates a Refund session for amountMinor.
func (c *Coordinator) Refund(amountMinor int64) (string, error) {
	if amountMinor <= 0 {
		return "", c.emitSyncError(ErrInvalidAmount.New(fmt.Sprintf("%d", amountMinor), nil).Native())
	}
	sess := c.newSession(KindRefund, amountMinor, wire.TransactionIDPlaceholder, false)
	if err := c.begin(sess); err != nil {
		return "", err
	}
	go c.sendPayment(sess, "")
	return sess.SessionID, nil
}

// Reversal initiates a Reversal session for a previously completed
// transaction.
func (c *Coordinator) Reversal(transactionID, timestamp string) (string, error) {
	if !validTransactionID(transactionID) {
		return "", c.emitSyncError(ErrInvalidTransactionID.New(transactionID, nil).Native())
	}
	sess := c.newSession(KindReversal, 0, transactionID, false)
	sess.OriginalTimestamp = timestamp
	if err := c.begin(sess); err != nil {
		return "", err
	}
	go c.sendReversalOrRetrieve(sess)
	return sess.SessionID, nil
}

// RetrieveTransaction re-requests a previously completed transaction's
// result by id and original timestamp.
func (c *Coordinator) RetrieveTransaction(transactionID, timestamp string) (string, error) {
	if !validTransactionID(transactionID) {
		return "", c.emitSyncError(ErrInvalidTransactionID.New(transactionID, nil).Native())
	}
	sess := c.newSession(KindRetrieve, 0, transactionID, false)
	sess.OriginalTimestamp = timestamp
	if err := c.begin(sess); err != nil {
		return "", err
	}
	go c.sendReversalOrRetrieve(sess)
	return sess.SessionID, nil
}

// RetrieveLastTransaction re-issues RetrieveTransaction for the most
// recently completed Payment or Refund, using the timestamp absorbed from
// its TransactionResult.
func (c *Coordinator) RetrieveLastTransaction() (string, error) {
	last := c.lastCompletedPaymentOrRefund()
	if last == nil {
		return "", c.emitSyncError(ErrInvalidTransactionID.New("no prior completed transaction", nil).Native())
	}
	return c.RetrieveTransaction(last.TransactionID, last.ResultTimestamp)
}

func (c *Coordinator) lastCompletedPaymentOrRefund() *Session {
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()
	for i := len(c.ledger.order) - 1; i >= 0; i-- {
		s := c.ledger.byID[c.ledger.order[i]]
		if s == nil {
			continue
		}
		if (s.Kind == KindPayment || s.Kind == KindRefund) && s.State == StateCompleted {
			return s.clone()
		}
	}
	return nil
}

// begin applies the session-initiating guard and, on success, inserts sess
// and records the sessionsCreated metric.
func (c *Coordinator) begin(sess *Session) error {
	conflict, began := c.ledger.tryBegin(sess)
	if !began {
		return c.emitSyncError(ErrSessionConflict.New(conflictInfo(conflict), nil).Native())
	}
	if err := c.ensureStarted(); err != nil {
		c.ledger.update(sess.SessionID, func(s *Session) { s.State = StateError; s.Err = err })
		return c.emitSyncError(err)
	}
	c.metrics.sessionsCreated.Inc()
	return nil
}

// --- wire send helpers ---

func (c *Coordinator) send(frame []byte, commandID string) {
	if err := c.engine.Send(frame, commandID); err != nil {
		ecrlog.Debugf("coordinator: send %s failed: %v", commandID, err)
	}
}

func (c *Coordinator) sendFrame(payload []byte, commandID string) {
	if err := c.engine.SendFrame(payload, commandID); err != nil {
		ecrlog.Debugf("coordinator: send %s failed: %v", commandID, err)
	}
}

func (c *Coordinator) sendPayment(sess *Session, authCode string) {
	c.ledger.update(sess.SessionID, func(s *Session) { s.State = StateRunning })
	req := wire.TransactionRequest{
		Type:          txTypeFor(sess.Kind),
		AmountMinor:   sess.AmountMinor,
		TransactionID: sess.TransactionID,
		BonusHandled:  sess.BonusHandled,
		AuthCode:      authCode,
		Serial:        c.cfg.Serial,
		Currency:      c.cfg.Currency,
		ECRNumber:     c.cfg.ECRNumber,
	}
	if authCode != "" {
		c.ledger.update(sess.SessionID, func(s *Session) { s.ManualAuthCode = authCode })
	}
	c.sendFrame(wire.EncodeTransactionRequest(req), string(sess.Kind))
}

func (c *Coordinator) sendReversalOrRetrieve(sess *Session) {
	c.ledger.update(sess.SessionID, func(s *Session) { s.State = StateRunning })
	req := wire.TransactionRequest{
		Type:          txTypeFor(sess.Kind),
		TransactionID: sess.TransactionID,
		Timestamp:     sess.OriginalTimestamp,
		Serial:        c.cfg.Serial,
		Currency:      c.cfg.Currency,
		ECRNumber:     c.cfg.ECRNumber,
	}
	c.sendFrame(wire.EncodeTransactionRequest(req), string(sess.Kind))
}

func (c *Coordinator) rerunLastPayment() {
	sess := c.ledger.lastRunning()
	if sess == nil {
		sess = c.ledger.last()
	}
	if sess == nil || sess.Kind != KindPayment {
		return
	}
	c.sendPayment(sess, "")
}

func (c *Coordinator) sendAcceptReject(transactionID string, accept bool) {
	c.sendFrame(wire.EncodeAcceptReject(transactionID, accept), "AcceptReject")
}

func txTypeFor(k Kind) byte {
	switch k {
	case KindPayment:
		return wire.TxTypePayment
	case KindRefund:
		return wire.TxTypeRefund
	case KindReversal:
		return wire.TxTypeReversal
	case KindRetrieve:
		return wire.TxTypeRetrieve
	default:
		return wire.TxTypePayment
	}
}
