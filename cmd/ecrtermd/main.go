// Command ecrtermd is a minimal non-interactive host for the engine: it
// wires config, logging, the serial port, the protocol engine and the
// session coordinator together, logs every event as it arrives, and runs
// until signaled. It is an example host, not a GUI or settings editor.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/ecrterm/ecrterm/config"
	"github.com/ecrterm/ecrterm/ecrlog"
	"github.com/ecrterm/ecrterm/event"
	"github.com/ecrterm/ecrterm/port"
	"github.com/ecrterm/ecrterm/session"
	"github.com/ecrterm/ecrterm/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, _, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Println("ecrtermd")
		return nil
	}
	if cfg.SerialPort == "" {
		return fmt.Errorf("no --serialport given")
	}

	if err := ecrlog.InitRotatingFile(cfg.LogDir, "ecrtermd.log", 8); err != nil {
		return err
	}
	if lvl, ok := ecrlog.LevelFromString(cfg.DebugLevel); ok {
		ecrlog.SetLevel(lvl)
	}
	ecrlog.Infof("ecrtermd starting, serial=%s archive=%s", cfg.SerialPort, cfg.ArchiveBackend)

	adapter := port.New(cfg.PortSettings(), port.OpenSerial)
	engine := transport.New(adapter, transport.Handlers{}, cfg.TransportConfig())

	sessCfg, err := cfg.SessionConfig()
	if err != nil {
		return err
	}

	bus := event.New()
	coord := session.New(engine, bus, sessCfg)
	defer coord.Disconnect()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go logEvents(bus)

	if err := coord.TestTerminal(); err != nil {
		ecrlog.Warnf("initial TestTerminal failed: %v", err)
	}

	<-interrupt
	ecrlog.Infof("shutdown signal received")
	return nil
}

// logEvents selects over the Bus channels and writes a log line per event,
// the ecrtermd equivalent of the teacher's connection/peer event logging.
// Results are read from the generic Result channel only; the kind-specific
// result channels are not read here.
func logEvents(bus *event.Bus) {
	for {
		select {
		case ev, ok := <-bus.Status:
			if !ok {
				return
			}
			ecrlog.Infof("status session=%s code=%s", ev.SessionID, ev.ResultCode)
		case ev, ok := <-bus.Initialized:
			if !ok {
				return
			}
			ecrlog.Infof("initialized session=%s txId=%s", ev.SessionID, ev.TransactionID)
		case ev, ok := <-bus.AbortResult:
			if !ok {
				return
			}
			ecrlog.Infof("abort result session=%s aborted=%v", ev.SessionID, ev.Aborted)
		case ev, ok := <-bus.TerminalAbort:
			if !ok {
				return
			}
			ecrlog.Warnf("terminal-initiated abort session=%s code=%s info=%s", ev.SessionID, ev.Code, ev.Info)
		case ev, ok := <-bus.CommandAccepted:
			if !ok {
				return
			}
			ecrlog.Debugf("command accepted id=%s", ev.CommandID)
		case ev, ok := <-bus.Result:
			if !ok {
				return
			}
			ecrlog.Infof("result kind=%s session=%s amount=%s",
				ev.Kind, ev.SessionID, humanize.Comma(ev.Decoded.AmountMinor))
		case ev, ok := <-bus.Bonus:
			if !ok {
				return
			}
			ecrlog.Infof("bonus session=%s customer=%s class=%s", ev.SessionID, ev.CustomerNumber, ev.MemberClass)
		case ev, ok := <-bus.DeviceStatus:
			if !ok {
				return
			}
			ecrlog.Debugf("device status=%+v", ev)
		case _, ok := <-bus.Wakeup:
			if !ok {
				return
			}
			ecrlog.Debugf("wakeup")
		case ev, ok := <-bus.Error:
			if !ok {
				return
			}
			ecrlog.Errorf("error: %v", ev.Err)
		}
	}
}
