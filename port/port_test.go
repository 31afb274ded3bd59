package port_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ecrterm/ecrterm/port"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	toRead    *bytes.Buffer
	written   *bytes.Buffer
	discarded int
	closed    bool
	openErr   error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{toRead: &bytes.Buffer{}, written: &bytes.Buffer{}}
}

func (f *fakeDriver) Read(p []byte) (int, error)  { return f.toRead.Read(p) }
func (f *fakeDriver) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakeDriver) Close() error                { f.closed = true; return nil }
func (f *fakeDriver) DiscardInput() error         { f.discarded++; f.toRead.Reset(); return nil }

func TestAdapterOpenReadWriteClose(t *testing.T) {
	drv := newFakeDriver()
	drv.toRead.Write([]byte{0x06})

	a := port.New(port.DefaultSettings("COM-FAKE"), func(s port.Settings) (port.Driver, error) {
		require.Equal(t, "COM-FAKE", s.Name)
		return drv, nil
	})
	require.False(t, a.IsOpen())
	require.NoError(t, a.Open())
	require.True(t, a.IsOpen())

	b, err := a.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x06), b)

	require.NoError(t, a.Write([]byte{0x02, 0x03}))
	require.Equal(t, []byte{0x02, 0x03}, drv.written.Bytes())

	require.NoError(t, a.DiscardInput())
	require.Equal(t, 1, drv.discarded)

	require.NoError(t, a.Close())
	require.True(t, drv.closed)
	require.False(t, a.IsOpen())
}

func TestAdapterOpenFailurePropagatesAsCommunicationError(t *testing.T) {
	a := port.New(port.DefaultSettings("COM-BAD"), func(s port.Settings) (port.Driver, error) {
		return nil, errors.New("no such device")
	})
	err := a.Open()
	require.Error(t, err)
	require.False(t, a.IsOpen())
}

func TestReadByteOnClosedPort(t *testing.T) {
	a := port.New(port.DefaultSettings("COM-X"), func(s port.Settings) (port.Driver, error) {
		return newFakeDriver(), nil
	})
	_, err := a.ReadByte()
	require.Error(t, err)
}

func TestEncodeDecodeRoundTripASCII(t *testing.T) {
	drv := newFakeDriver()
	a := port.New(port.DefaultSettings("COM-X"), func(s port.Settings) (port.Driver, error) { return drv, nil })
	require.NoError(t, a.Open())

	encoded := a.EncodeText("hello")
	require.Equal(t, []byte("hello"), encoded)
	for _, b := range encoded {
		require.Equal(t, rune(b), a.DecodeByte(b))
	}
}
