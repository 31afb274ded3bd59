package archive_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecrterm/ecrterm/archive"
	"github.com/stretchr/testify/require"
)

func sampleRecord() archive.Record {
	return archive.Record{
		Timestamp:       time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC),
		TransactionID:   "00042",
		TransactionType: "0",
		Kind:            "Payment",
		AmountMinor:     1234,
		Currency:        "978",
		CardType:        "V",
		MaskedCardNumber: "411111******1111",
		PayerReceipt:    []byte("payer receipt text"),
		PayeeReceipt:    []byte("payee receipt text"),
		Flags:           '0',
	}
}

func TestFileNameMatchesSpecFormat(t *testing.T) {
	r := sampleRecord()
	require.Equal(t, "2026-03-05-14-30-00-00042-0.ecrtn.txt", archive.FileName(r))

	r.Sequence = 2
	require.Equal(t, "2026-03-05-14-30-00-00042-0-2.ecrtn.txt", archive.FileName(r))
}

func TestRenderEncodesReceiptsAsBase64AndOmitsEmptyBonus(t *testing.T) {
	body := archive.Render(sampleRecord())
	require.Contains(t, body, "[TransactionInfo]")
	require.NotContains(t, body, "[BonusInfo]")
	require.Contains(t, body, "[ExtraInfo]")
	require.Contains(t, body, "payerReceipt=b64:")
	require.Contains(t, body, "amountMinor=1234")
}

func TestRenderIncludesBonusInfoWhenPresent(t *testing.T) {
	r := sampleRecord()
	r.BonusCustomerNumber = "CUST0001"
	body := archive.Render(r)
	require.Contains(t, body, "[BonusInfo]")
	require.Contains(t, body, "customerNumber=CUST0001")
}

func TestTextStoreWritesExpectedFile(t *testing.T) {
	dir := t.TempDir()
	store := archive.NewTextStore(dir)
	r := sampleRecord()
	require.NoError(t, store.Save(r))

	data, err := os.ReadFile(filepath.Join(dir, archive.FileName(r)))
	require.NoError(t, err)
	require.Equal(t, archive.Render(r), string(data))
}

func TestBoltStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ecrtn.bolt")
	store, err := archive.OpenBoltStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	r := sampleRecord()
	require.NoError(t, store.Save(r))

	body, ok := store.Get(archive.FileName(r))
	require.True(t, ok)
	require.Equal(t, archive.Render(r), body)
}
