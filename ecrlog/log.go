// Package ecrlog is the engine's leveled logger: a small, global,
// subsystem-free logger in the style of the teacher's pktlog/log, used by
// every component instead of the standard library's log package.
package ecrlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is the severity at which a message is logged.
type Level uint32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrs = [...]string{"TRC", "DBG", "INF", "WRN", "ERR", "CRT"}

func (l Level) String() string {
	if l >= LevelOff {
		return "OFF"
	}
	return levelStrs[l]
}

// LevelFromString parses a case-insensitive level name. It returns
// (LevelInfo, false) for an unrecognized string.
func LevelFromString(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "trace", "trc":
		return LevelTrace, true
	case "debug", "dbg":
		return LevelDebug, true
	case "info", "inf":
		return LevelInfo, true
	case "warn", "wrn":
		return LevelWarn, true
	case "error", "err":
		return LevelError, true
	case "critical", "crt":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	default:
		return LevelInfo, false
	}
}

type backend struct {
	mu  sync.Mutex
	w   io.Writer
	lvl Level
}

var b = &backend{w: os.Stdout, lvl: LevelInfo}

// SetWriter redirects all log output, e.g. to a rotator.Rotator.
func SetWriter(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.w = w
}

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lvl = l
}

func (bk *backend) print(l Level, format string, args []interface{}) {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	if l < bk.lvl {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05.000"), l, msg)
	bk.w.Write([]byte(line))
}

func Tracef(format string, args ...interface{})    { b.print(LevelTrace, format, args) }
func Debugf(format string, args ...interface{})    { b.print(LevelDebug, format, args) }
func Infof(format string, args ...interface{})     { b.print(LevelInfo, format, args) }
func Warnf(format string, args ...interface{})     { b.print(LevelWarn, format, args) }
func Errorf(format string, args ...interface{})    { b.print(LevelError, format, args) }
func Criticalf(format string, args ...interface{}) { b.print(LevelCritical, format, args) }
