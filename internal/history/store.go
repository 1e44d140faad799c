// Package history persists per-session feed item outcomes in a local bbolt
// database, so a daemon restart can tell which items of earlier sessions
// loaded and which failed.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketItems = []byte("items")

// Record is one feed item outcome.
type Record struct {
	Session string    `json:"session"`
	Index   int       `json:"index"`
	Status  string    `json:"status"` // "loaded" or "failed"
	Key     string    `json:"key,omitempty"`
	At      time.Time `json:"at"`
}

// Store is a bbolt-backed history store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketItems)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create history bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// itemKey orders records by session, then index.
func itemKey(session string, index int) []byte {
	return []byte(fmt.Sprintf("%s/%08d", session, index))
}

// Put records an item outcome.
func (s *Store) Put(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketItems).Put(itemKey(rec.Session, rec.Index), data)
	})
}

// List returns all records of a session in index order.
func (s *Store) List(session string) ([]Record, error) {
	var records []Record
	prefix := []byte(session + "/")

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketItems).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %q: %w", k, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
