package session_test

import (
	"testing"
	"time"

	"github.com/ecrterm/ecrterm/event"
	"github.com/ecrterm/ecrterm/port"
	ecrsession "github.com/ecrterm/ecrterm/session"
	"github.com/ecrterm/ecrterm/transport"
	"github.com/ecrterm/ecrterm/wire"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, cfg ecrsession.Config) (*ecrsession.Coordinator, *event.Bus, *chanDriver) {
	t.Helper()
	drv := newChanDriver()
	a := port.New(port.DefaultSettings("COM-TEST"), func(s port.Settings) (port.Driver, error) {
		return drv, nil
	})
	tcfg := transport.DefaultConfig()
	tcfg.AckDelay = 0
	tcfg.SendTimeout = 150 * time.Millisecond
	eng := transport.New(a, transport.Handlers{}, tcfg)

	bus := event.New()
	coord := ecrsession.New(eng, bus, cfg)
	t.Cleanup(func() { eng.Teardown() })
	return coord, bus, drv
}

// autoACK watches drv for new writes that look like a host request (more
// than a single byte, or the ENQ handshake) and immediately ACKs each one,
// so Send() calls complete without a real terminal attached. The engine's
// own bare-ACK replies to inbound frames are not requests and get no reply,
// matching a real terminal.
func autoACK(t *testing.T, drv *chanDriver) {
	t.Helper()
	go func() {
		seen := 0
		for {
			time.Sleep(2 * time.Millisecond)
			ws := drv.Writes()
			for seen < len(ws) {
				w := ws[seen]
				seen++
				if len(w) == 1 && w[0] == wire.ACK {
					continue
				}
				drv.Push(wire.ACK)
			}
		}
	}()
}

func buildShortResult(txID, amount string) []byte {
	payload := make([]byte, 138)
	for i := range payload {
		payload[i] = ' '
	}
	payload[0] = wire.MsgTransactionResult
	copy(payload[88:93], txID)
	copy(payload[117:124], amount)
	copy(payload[124:127], "978")
	payload[136] = '1'
	payload[137] = '0'
	return payload
}

// waitForWrites blocks until drv has recorded at least n writes, so a test
// can be sure a background send goroutine has at least started (and thus
// already transitioned its session to Running) before it pushes a reply.
func waitForWrites(t *testing.T, drv *chanDriver, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(drv.Writes()) >= n
	}, time.Second, 2*time.Millisecond)
}

func recvResult(t *testing.T, ch chan event.Result) event.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result event")
		return event.Result{}
	}
}

func TestTestTerminalEmitsCommandAccepted(t *testing.T) {
	coord, bus, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	require.NoError(t, coord.TestTerminal())

	select {
	case ev := <-bus.CommandAccepted:
		require.Equal(t, "Test", ev.CommandID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for CommandAccepted")
	}
}

func TestRunPaymentInvalidAmountReturnsValidationError(t *testing.T) {
	coord, bus, _ := newTestCoordinator(t, ecrsession.DefaultConfig())
	_, err := coord.RunPayment(0, false, "")
	require.Error(t, err)
	select {
	case ev := <-bus.Error:
		require.Error(t, ev.Err)
	default:
		t.Fatal("expected a synchronous error event")
	}
}

func TestRunPaymentSessionConflictGuard(t *testing.T) {
	coord, _, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	_, err := coord.RunPayment(1000, false, "")
	require.NoError(t, err)

	_, err = coord.RunPayment(500, false, "")
	require.Error(t, err)
}

func TestRunPaymentCompletesAndEmitsResult(t *testing.T) {
	coord, bus, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	_, err := coord.RunPayment(1234, false, "")
	require.NoError(t, err)
	waitForWrites(t, drv, 1)

	// terminal announces the assigned transactionId on phase A
	status := wire.BuildFrame([]byte("2A000000042"))
	drv.Push(status...)

	require.Eventually(t, func() bool {
		select {
		case ev := <-bus.Initialized:
			return ev.TransactionID == "00042"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	result := wire.BuildFrame(buildShortResult("00042", "0001234"))
	drv.Push(result...)

	r := recvResult(t, bus.PurchaseResult)
	require.Equal(t, "Payment", r.Kind)
	require.Equal(t, int64(1234), r.Decoded.AmountMinor)
}

func TestBonusInterleaveStartsSecondPayment(t *testing.T) {
	coord, bus, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	_, err := coord.RunPayment(1000, false, "")
	require.NoError(t, err)
	waitForWrites(t, drv, 1)

	bonusStatus := wire.BuildFrame([]byte("2A2001customer-0001"))
	drv.Push(bonusStatus...)

	// a second full transaction-request frame (not just the reader's bare
	// ACK reply to the status frame) proves the interleave actually fired.
	require.Eventually(t, func() bool {
		frames := 0
		for _, w := range drv.Writes() {
			if len(w) > 1 {
				frames++
			}
		}
		return frames >= 2
	}, time.Second, 5*time.Millisecond)

	result := wire.BuildFrame(buildShortResult("00000", "0001000"))
	drv.Push(result...)

	r := recvResult(t, bus.PurchaseResult)
	require.Equal(t, "Payment", r.Kind)
}

func TestManualPromptDeniedByDefaultPolicyAborts(t *testing.T) {
	coord, _, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	_, err := coord.RunPayment(1000, false, "")
	require.NoError(t, err)
	waitForWrites(t, drv, 1)

	manualPrompt := wire.BuildFrame([]byte("2Q2003"))
	drv.Push(manualPrompt...)

	require.Eventually(t, func() bool {
		for _, w := range drv.Writes() {
			if len(w) >= 3 && w[1] == wire.CmdAbort {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestAcceptTransactionRejectsInvalidID(t *testing.T) {
	coord, _, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)
	require.Error(t, coord.AcceptTransaction(""))
	require.Error(t, coord.AcceptTransaction("123456"))
}

func TestBonusCardOnlyPublishesBonusAndTerminalAbort(t *testing.T) {
	coord, bus, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	_, err := coord.RunPayment(1000, false, "")
	require.NoError(t, err)
	waitForWrites(t, drv, 1)

	bonusOnly := wire.BuildFrame([]byte("2A2002loyalty-only"))
	drv.Push(bonusOnly...)

	select {
	case ev := <-bus.Bonus:
		require.Equal(t, "2002", ev.StatusCode)
		require.Equal(t, "loyalty-only", ev.StatusText)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Bonus event")
	}

	select {
	case ev := <-bus.TerminalAbort:
		require.Equal(t, "2002", ev.Code)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TerminalAbort event")
	}
}

func TestUnhandled9xxxStatusPublishesTerminalAbort(t *testing.T) {
	coord, bus, drv := newTestCoordinator(t, ecrsession.DefaultConfig())
	autoACK(t, drv)

	_, err := coord.RunPayment(1000, false, "")
	require.NoError(t, err)
	waitForWrites(t, drv, 1)

	abortStatus := wire.BuildFrame([]byte("2A9001device fault"))
	drv.Push(abortStatus...)

	select {
	case ev := <-bus.TerminalAbort:
		require.Equal(t, "9001", ev.Code)
		require.Equal(t, "device fault", ev.Info)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TerminalAbort event")
	}
}
