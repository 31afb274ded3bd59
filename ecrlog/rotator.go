package ecrlog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// InitRotatingFile points the logger at a rotating file in logDir, keeping
// maxRolls uncompressed rolls, while still echoing to stdout. Mirrors the
// teacher's initLogRotator wiring of github.com/jrick/logrotate.
func InitRotatingFile(logDir, fileName string, maxRolls int) error {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return err
	}
	r, err := rotator.New(filepath.Join(logDir, fileName), 10*1024, false, maxRolls)
	if err != nil {
		return err
	}
	SetWriter(io.MultiWriter(os.Stdout, r))
	return nil
}
