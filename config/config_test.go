package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesFlagsOverDefaults(t *testing.T) {
	cfg, remaining, err := Load([]string{"--serialport=/dev/ttyUSB0", "--baudrate=9600", "extra-arg"})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	require.Equal(t, 9600, cfg.BaudRate)
	require.Equal(t, defaultStopBits, cfg.StopBits)
	require.Equal(t, []string{"extra-arg"}, remaining)
}

func TestDefaultMatchesSpecSerialDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, defaultBaudRate, cfg.BaudRate)
	require.Equal(t, "N", cfg.Parity)
	require.Equal(t, DefaultArchiveBackend, cfg.ArchiveBackend)
}

func TestPortSettingsAndSessionPolicyWiring(t *testing.T) {
	cfg := Default()
	cfg.SerialPort = "/dev/ttyUSB0"
	cfg.AllowManualAuthorization = true
	cfg.DenyUserPrompt = true

	settings := cfg.PortSettings()
	require.Equal(t, "/dev/ttyUSB0", settings.Name)
	require.Equal(t, cfg.BaudRate, settings.BaudRate)

	policy := cfg.SessionPolicy()
	require.True(t, policy.AllowManualAuthorization("2003"))
	require.False(t, policy.AllowUserPrompt("2004"))
}

func TestOpenArchiveNoneReturnsNil(t *testing.T) {
	cfg := Default()
	store, err := cfg.OpenArchive()
	require.NoError(t, err)
	require.Nil(t, store)
}

func TestOpenArchiveTextCreatesStore(t *testing.T) {
	cfg := Default()
	cfg.ArchiveBackend = "text"
	cfg.ArchivePath = t.TempDir()
	store, err := cfg.OpenArchive()
	require.NoError(t, err)
	require.NotNil(t, store)
}

func TestOpenArchiveUnknownBackendErrors(t *testing.T) {
	cfg := Default()
	cfg.ArchiveBackend = "carrier-pigeon"
	_, err := cfg.OpenArchive()
	require.Error(t, err)
}
