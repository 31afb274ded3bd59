// Package config defines the engine's operating parameters and loads them
// from flags and an ini file the way the teacher's config.go builds pktd's
// Config, using github.com/jessevdk/go-flags for both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "ecrtermd.conf"
	defaultLogDirname      = "logs"
	defaultLogLevel        = "info"

	defaultBaudRate     = 19200
	defaultDataBits     = 8
	defaultStopBits     = 1
	defaultParity       = "N"
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second

	defaultAckDelay    = 100 * time.Millisecond
	defaultSendTimeout = 3 * time.Second
	defaultMaxRetries  = 3

	defaultLedgerCapacity    = 100
	defaultBonusDisableDelay = 500 * time.Millisecond
	defaultCurrency          = "978"

	// DefaultArchiveBackend disables transaction archiving; "text" and
	// "bolt" select archive.TextStore / archive.BoltStore respectively.
	DefaultArchiveBackend = "none"
)

var defaultHomeDir = appDataDir("ecrtermd")

// appDataDir returns a per-user application data directory, grounded on
// the teacher's btcutil.AppDataDir but kept to the standard library since
// pulling in btcutil here would mean dragging in its blockchain-wide
// dependency closure for a single helper function.
func appDataDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, "."+name)
}

// Config is the engine's full set of operating parameters: serial line,
// protocol timings, session policy, and archive backend selection. It is
// not the GUI settings-persistence surface the spec names out of scope;
// this is ambient configuration for the engine process itself.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	HomeDir     string `long:"homedir" description:"Directory for logs and archived transaction records"`
	LogDir      string `long:"logdir" description:"Directory to write log files"`
	DebugLevel  string `long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	SerialPort   string        `short:"p" long:"serialport" description:"Serial device the terminal is attached to"`
	BaudRate     int           `long:"baudrate" description:"Serial line baud rate"`
	DataBits     int           `long:"databits" description:"Serial line data bits"`
	StopBits     int           `long:"stopbits" description:"Serial line stop bits"`
	Parity       string        `long:"parity" description:"Serial line parity {N, E, O}"`
	ReadTimeout  time.Duration `long:"readtimeout" description:"Per-byte serial read timeout"`
	WriteTimeout time.Duration `long:"writetimeout" description:"Serial write timeout"`

	AckDelay    time.Duration `long:"ackdelay" description:"Delay before sending the ACK reply to an inbound frame"`
	SendTimeout time.Duration `long:"sendtimeout" description:"Time to wait for ACK after sending a frame before retrying"`
	MaxRetries  int           `long:"maxretries" description:"Maximum frame send attempts before a TimeoutError"`

	LedgerCapacity    int           `long:"ledgercapacity" description:"Number of sessions retained in the bounded session ledger"`
	BonusDisableDelay time.Duration `long:"bonusdisabledelay" description:"Delay after an abort before automatically disabling bonus-card mode"`
	ECRNumber         string        `long:"ecrnumber" description:"ECR terminal identification number sent in every TransactionRequest"`
	Currency          string        `long:"currency" description:"ISO 4217 numeric currency code"`

	AllowManualAuthorization bool `long:"allowmanualauth" description:"Permit manual-entry authorization prompts (2003/2007) instead of always aborting"`
	DenyUserPrompt           bool `long:"denyuserprompt" description:"Refuse confirmation-only prompts instead of auto-accepting them"`

	ArchiveBackend string `long:"archivebackend" description:"Transaction record archive backend {none, text, bolt}"`
	ArchivePath    string `long:"archivepath" description:"Directory (text backend) or file (bolt backend) for archived records"`
}

// Default returns Config populated with this package's defaults, before
// any file or flag has been applied.
func Default() Config {
	return Config{
		ConfigFile:        filepath.Join(defaultHomeDir, defaultConfigFilename),
		HomeDir:           defaultHomeDir,
		LogDir:            filepath.Join(defaultHomeDir, defaultLogDirname),
		DebugLevel:        defaultLogLevel,
		BaudRate:          defaultBaudRate,
		DataBits:          defaultDataBits,
		StopBits:          defaultStopBits,
		Parity:            defaultParity,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		AckDelay:          defaultAckDelay,
		SendTimeout:       defaultSendTimeout,
		MaxRetries:        defaultMaxRetries,
		LedgerCapacity:    defaultLedgerCapacity,
		BonusDisableDelay: defaultBonusDisableDelay,
		Currency:          defaultCurrency,
		ArchiveBackend:    DefaultArchiveBackend,
	}
}

// Load runs the teacher's four-step config process: start from defaults,
// pre-parse the command line for an alternate config file or -V, apply the
// ini file, then re-parse the command line so flags win over the file.
func Load(args []string) (*Config, []string, error) {
	cfg := Default()

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		if fe, ok := err.(*flags.Error); !ok || fe.Type != flags.ErrHelp {
			return nil, nil, err
		}
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	if preCfg.ConfigFile != "" {
		parser := flags.NewParser(&cfg, flags.None)
		if err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return nil, nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	remaining, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.HomeDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating home directory: %w", err)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	return &cfg, remaining, nil
}
