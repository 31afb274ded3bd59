package archive

import (
	"os"
	"path/filepath"

	"github.com/ecrterm/ecrterm/ecrerr"
)

// FileErr is the ErrorType for archive write faults.
var FileErr = ecrerr.NewErrorType("archive.FileError")
var ErrWrite = FileErr.Code("failed to write archive record")

// TextStore is the plain-text .ecrtn.txt implementation of Store, spec §6.
// One file per record, named per FileName, written under Dir.
type TextStore struct {
	Dir string
}

// NewTextStore creates a TextStore rooted at dir. dir is created on first
// Save if it does not already exist.
func NewTextStore(dir string) *TextStore {
	return &TextStore{Dir: dir}
}

var _ Store = (*TextStore)(nil)

// Save renders r and writes it to Dir/FileName(r), creating Dir if needed.
func (s *TextStore) Save(r Record) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return ErrWrite.New(s.Dir, ecrerr.E(err)).Native()
	}
	path := filepath.Join(s.Dir, FileName(r))
	if err := os.WriteFile(path, []byte(Render(r)), 0o644); err != nil {
		return ErrWrite.New(path, ecrerr.E(err)).Native()
	}
	return nil
}
