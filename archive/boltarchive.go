package archive

import (
	"time"

	"github.com/ecrterm/ecrterm/ecrerr"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("ecrtn")

// BoltStore is a bbolt-backed alternative to TextStore, for embedders that
// want a single queryable file instead of one text file per transaction.
// Keys are FileName(r), the same yyyy-MM-dd-HH-mm-ss-<txId>-<txType>[-<n>]
// name TextStore uses, including the .ecrtn.txt suffix; values are
// Render(r)'s text body.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens (creating if necessary) a bbolt database at path and
// ensures its single bucket exists.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, ErrWrite.New(path, ecrerr.E(err)).Native()
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, ErrWrite.New(path, ecrerr.E(err)).Native()
	}
	return &BoltStore{db: db}, nil
}

// Save stores r's rendered text body under FileName(r).
func (s *BoltStore) Save(r Record) error {
	key := []byte(FileName(r))
	val := []byte(Render(r))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, val)
	})
	if err != nil {
		return ErrWrite.New(string(key), ecrerr.E(err)).Native()
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the rendered text body stored for fileName, or ok=false if
// absent. Mainly useful for tests and operator tooling.
func (s *BoltStore) Get(fileName string) (string, bool) {
	var out string
	var ok bool
	s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(fileName))
		if v != nil {
			out = string(v)
			ok = true
		}
		return nil
	})
	return out, ok
}
