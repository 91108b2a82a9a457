package config

import (
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
)

var serverBucket = []byte("server")
var updateSequenceKey = []byte("update_sequence")

// Store persists the WMS UpdateSequence counter (spec.md §4.3.1) across
// restarts, in a small bolt database. Per spec.md §5, implementations
// SHOULD scope cross-request state deliberately; Store is the one piece
// of genuinely durable, explicitly-opted-into server state.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if necessary) the bolt database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(serverBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init state db %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpdateSequence reads the persisted sequence value, defaulting to "0"
// if never set.
func (s *Store) UpdateSequence() (string, error) {
	var val string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(serverBucket).Get(updateSequenceKey)
		if b == nil {
			val = "0"
			return nil
		}
		val = string(b)
		return nil
	})
	return val, err
}

// BumpUpdateSequence atomically increments and persists the sequence,
// returning the new value. Nothing in mapservd calls it; the sequence
// changes only when a caller of Store does.
func (s *Store) BumpUpdateSequence() (string, error) {
	var next string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(serverBucket)
		cur := 0
		if b := bucket.Get(updateSequenceKey); b != nil {
			cur, _ = strconv.Atoi(string(b))
		}
		cur++
		next = strconv.Itoa(cur)
		return bucket.Put(updateSequenceKey, []byte(next))
	})
	return next, err
}
