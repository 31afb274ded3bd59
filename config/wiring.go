package config

import (
	"fmt"
	"path/filepath"

	"github.com/ecrterm/ecrterm/archive"
	"github.com/ecrterm/ecrterm/port"
	"github.com/ecrterm/ecrterm/session"
	"github.com/ecrterm/ecrterm/transport"
)

// PortSettings builds the port.Settings this Config describes.
func (c *Config) PortSettings() port.Settings {
	return port.Settings{
		Name:         c.SerialPort,
		BaudRate:     c.BaudRate,
		DataBits:     c.DataBits,
		StopBits:     c.StopBits,
		Parity:       c.Parity,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// TransportConfig builds the transport.Config this Config describes.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		AckDelay:    c.AckDelay,
		SendTimeout: c.SendTimeout,
		MaxRetries:  c.MaxRetries,
	}
}

// SessionPolicy builds the session.Policy implied by the manual-auth and
// user-prompt toggles. Prompt hooks themselves (RequestManualInput,
// RequestConfirmation) keep DefaultPolicy's always-decline / always-accept
// behavior; only the gates are driven by
// config, since the actual prompt UI is an embedder concern.
func (c *Config) SessionPolicy() session.Policy {
	p := session.DefaultPolicy()
	if c.AllowManualAuthorization {
		p.AllowManualAuthorization = func(string) bool { return true }
	}
	if c.DenyUserPrompt {
		p.AllowUserPrompt = func(string) bool { return false }
	}
	return p
}

// OpenArchive constructs the archive.Store selected by ArchiveBackend, or
// nil if archiving is disabled. The caller is responsible for closing a
// returned *archive.BoltStore.
func (c *Config) OpenArchive() (archive.Store, error) {
	switch c.ArchiveBackend {
	case "", "none":
		return nil, nil
	case "text":
		dir := c.ArchivePath
		if dir == "" {
			dir = filepath.Join(c.HomeDir, "transactions")
		}
		return archive.NewTextStore(dir), nil
	case "bolt":
		path := c.ArchivePath
		if path == "" {
			path = filepath.Join(c.HomeDir, "transactions.db")
		}
		return archive.OpenBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", c.ArchiveBackend)
	}
}

// SessionConfig builds the session.Config this Config describes, opening
// the selected archive backend along the way.
func (c *Config) SessionConfig() (session.Config, error) {
	store, err := c.OpenArchive()
	if err != nil {
		return session.Config{}, err
	}
	cfg := session.DefaultConfig()
	cfg.LedgerCapacity = c.LedgerCapacity
	cfg.BonusDisableDelay = c.BonusDisableDelay
	cfg.Serial = c.SerialPort
	cfg.Currency = c.Currency
	cfg.ECRNumber = c.ECRNumber
	cfg.Policy = c.SessionPolicy()
	cfg.Archive = store
	return cfg, nil
}
