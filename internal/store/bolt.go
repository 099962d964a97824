package store

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/provmark/internal/fingerprint"
)

const (
	provenanceBucket = "provenance"
	boltOpenTimeout  = time.Second
)

// BoltStore is the bbolt provenance backend.
// bbolt runs at most one write transaction at a time, so check-then-put
// inside a single Update is atomic.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt creates or opens a bbolt database at path.
// Fails with a timeout error if another process holds the file lock.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(provenanceBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put records that fp was produced by prompt unless fp is already present.
func (s *BoltStore) Put(ctx context.Context, fp fingerprint.Fingerprint, prompt string) (inserted bool, err error) {
	if !fp.Valid() {
		return false, fmt.Errorf("put: %w: %q", fingerprint.ErrInvalidFingerprint, fp)
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("put: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(provenanceBucket))
		key := []byte(fp.String())
		if b.Get(key) != nil {
			return nil
		}
		inserted = true
		return b.Put(key, []byte(prompt))
	})
	if err != nil {
		return false, fmt.Errorf("put: %w", err)
	}
	return inserted, nil
}

// Get returns the prompt recorded for fp.
func (s *BoltStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (prompt string, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("get: %w", err)
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(provenanceBucket)).Get([]byte(fp.String()))
		if v == nil {
			return nil
		}
		// v is only valid inside the transaction.
		prompt = string(v)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get: %w", err)
	}
	return prompt, found, nil
}

// Count returns the number of provenance records.
func (s *BoltStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket([]byte(provenanceBucket)).Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
