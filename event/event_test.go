package event_test

import (
	"testing"

	"github.com/ecrterm/ecrterm/event"
	"github.com/stretchr/testify/require"
)

func TestEmitResultFansOutToKindChannel(t *testing.T) {
	b := event.New()
	b.EmitResult(event.Result{SessionID: "s1", Kind: "Refund"})

	select {
	case r := <-b.RefundResult:
		require.Equal(t, "s1", r.SessionID)
	default:
		t.Fatal("expected a RefundResult event")
	}
	select {
	case r := <-b.Result:
		require.Equal(t, "Refund", r.Kind)
	default:
		t.Fatal("expected a generic Result event")
	}
	select {
	case <-b.PurchaseResult:
		t.Fatal("unexpected PurchaseResult event")
	default:
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	b := event.New()
	for i := 0; i < 64; i++ {
		b.EmitWakeup()
	}
	n := 0
	for {
		select {
		case <-b.Wakeup:
			n++
			continue
		default:
		}
		break
	}
	require.LessOrEqual(t, n, 32)
	require.Greater(t, n, 0)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := event.New()
	require.NotPanics(t, func() {
		b.Close()
		b.Close()
	})
}
