// Package checkpoint remembers how far each change-stream consumer has read.
//
// Checkpoints live in a small bbolt file next to, not inside, the data
// directory, so a consumer can track its position without opening the
// engine.
package checkpoint

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("checkpoints")

// ErrEmptyConsumer is returned for a blank consumer name.
var ErrEmptyConsumer = errors.New("consumer name is required")

// Store is a bbolt-backed map of consumer name to next sequence number.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the checkpoint file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create checkpoint dir for %s", path)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint file %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create checkpoint bucket")
	}
	return &Store{db: db}, nil
}

// Load returns the saved position of consumer. ok is false if it has none.
func (s *Store) Load(consumer string) (seq uint64, ok bool, err error) {
	if consumer == "" {
		return 0, false, ErrEmptyConsumer
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(consumer))
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return errors.Newf("checkpoint for %q has %d bytes", consumer, len(v))
		}
		seq, ok = binary.BigEndian.Uint64(v), true
		return nil
	})
	return seq, ok, err
}

// Save records seq as the position consumer resumes from.
func (s *Store) Save(consumer string, seq uint64) error {
	if consumer == "" {
		return ErrEmptyConsumer
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(consumer), buf[:])
	})
}

// Delete forgets consumer.
func (s *Store) Delete(consumer string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(consumer))
	})
}

// Consumers lists every consumer with a saved position.
func (s *Store) Consumers() (map[string]uint64, error) {
	out := make(map[string]uint64)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				out[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	return out, err
}

// Close releases the checkpoint file.
func (s *Store) Close() error {
	return s.db.Close()
}
