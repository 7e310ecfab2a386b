package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/starford/ansuz/internal/cache"
)

const (
	bucketGlobal = "global_cache"
	// bucketNotes holds one nested bucket per note id.
	bucketNotes = "note_cache"
)

// Bolt stores cache entries in a bbolt file. It suits single-process
// deployments that do not want cgo.
type Bolt struct {
	db *bolt.DB
}

var _ cache.Persistent = (*Bolt)(nil)

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("persist: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketGlobal, bucketNotes} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: init buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close closes the bbolt file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

func (s *Bolt) GetGlobal(_ context.Context, hash string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data = bytes.Clone(tx.Bucket([]byte(bucketGlobal)).Get([]byte(hash)))
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("persist: get global: %w", err)
	}
	return data, data != nil, nil
}

func (s *Bolt) PutGlobal(_ context.Context, hash string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketGlobal)).Put([]byte(hash), data)
	})
	if err != nil {
		return fmt.Errorf("persist: put global: %w", err)
	}
	return nil
}

func (s *Bolt) RemoveGlobal(_ context.Context, hash string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketGlobal)).Delete([]byte(hash))
	})
	if err != nil {
		return fmt.Errorf("persist: remove global: %w", err)
	}
	return nil
}

func (s *Bolt) GetPerNote(_ context.Context, noteID, hash string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bucketNotes)).Bucket([]byte(noteID)); b != nil {
			data = bytes.Clone(b.Get([]byte(hash)))
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("persist: get note entry: %w", err)
	}
	return data, data != nil, nil
}

func (s *Bolt) PutPerNote(_ context.Context, noteID, hash string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(bucketNotes)).CreateBucketIfNotExists([]byte(noteID))
		if err != nil {
			return err
		}
		return b.Put([]byte(hash), data)
	})
	if err != nil {
		return fmt.Errorf("persist: put note entry: %w", err)
	}
	return nil
}

func (s *Bolt) RemovePerNote(_ context.Context, noteID, hash string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bucketNotes)).Bucket([]byte(noteID)); b != nil {
			return b.Delete([]byte(hash))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist: remove note entry: %w", err)
	}
	return nil
}

func (s *Bolt) ClearNote(_ context.Context, noteID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket([]byte(bucketNotes)).DeleteBucket([]byte(noteID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("persist: clear note: %w", err)
	}
	return nil
}
