package wire_test

import (
	"testing"

	"github.com/ecrterm/ecrterm/wire"
	"github.com/stretchr/testify/require"
)

func TestEncodeTransactionRequestIsExactLength(t *testing.T) {
	payload := wire.EncodeTransactionRequest(wire.TransactionRequest{
		Type:          wire.TxTypePayment,
		AmountMinor:   1234,
		TransactionID: wire.TransactionIDPlaceholder,
		Timestamp:     "250101120000",
		Serial:        "123456789",
		ECRNumber:     "001",
	})
	require.Len(t, payload, wire.TransactionRequestLen)
	require.Equal(t, byte('y'), payload[0])
	require.Equal(t, byte('0'), payload[1])
	require.Equal(t, "000000001234", string(payload[2:14]))
	require.Equal(t, "000000000000", string(payload[14:26])) // otherAmount always zero
	require.Equal(t, "00000", string(payload[26:31]))
}

func TestEncodeTransactionRequestEmptyTimestampIsAllZero(t *testing.T) {
	payload := wire.EncodeTransactionRequest(wire.TransactionRequest{Type: wire.TxTypeReversal})
	// timestamp field starts at offset 1+1+12+12+5+1+1+1+7 = 41, width 12
	require.Equal(t, "000000000000", string(payload[41:53]))
}

func TestEncodeTransactionRequestBonusHandledFlag(t *testing.T) {
	payload := wire.EncodeTransactionRequest(wire.TransactionRequest{Type: wire.TxTypePayment, BonusHandled: true})
	// bonusHandled is the byte right after manual, offset 1+1+12+12+5+1+1 = 33
	require.Equal(t, byte('1'), payload[33])
}

func TestEncodeDisplayTextDowngradesOversizeLines(t *testing.T) {
	long := "this line is definitely longer than twenty one chars"
	payload := wire.EncodeDisplayText(wire.DisplayBig, long, "short")
	require.Equal(t, wire.DisplaySmall, payload[1])
	require.Len(t, payload[2:23], 21)
	require.Equal(t, long[:21], string(payload[2:23]))
}

func TestEncodeDisplayTextPadsShortLines(t *testing.T) {
	payload := wire.EncodeDisplayText(wire.DisplaySmall, "hi", "")
	line1 := payload[2:23]
	require.Equal(t, "hi", string(line1[:2]))
	for _, b := range line1[2:] {
		require.Equal(t, byte(' '), b)
	}
}

func TestEncodeAcceptReject(t *testing.T) {
	accept := wire.EncodeAcceptReject("00042", true)
	require.Equal(t, byte('$'), accept[0])
	require.Equal(t, "00042", string(accept[1:6]))
	require.Equal(t, byte('1'), accept[6])

	reject := wire.EncodeAcceptReject("42", false)
	require.Equal(t, "00042", string(reject[1:6]))
	require.Equal(t, byte('9'), reject[6])
}

func TestEncodeAbortAndBonusModeAndDeviceControl(t *testing.T) {
	require.Equal(t, []byte{'7', '2'}, wire.EncodeAbort())
	require.Equal(t, []byte{'C', '1', '0', '0', '0'}, wire.EncodeBonusCardMode(wire.BonusModeEnable))
	require.Equal(t, []byte{'s', '0', wire.DeviceControlVersion}, wire.EncodeDeviceControl(wire.DeviceControlVersion))
}

func TestHandshakeIsRawENQ(t *testing.T) {
	require.Equal(t, []byte{wire.ENQ}, wire.Handshake)
}
