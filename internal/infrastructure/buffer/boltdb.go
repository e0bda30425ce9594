package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store persists mutations in BoltDB while the record store is down.
// Keys sort by buffering time, so iteration order equals mutation order.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open creates the database file (and its directory) and the bucket.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "mutations"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// Enqueue appends a buffered mutation.
func (s *Store) Enqueue(item Item) error {
	if err := s.ready(); err != nil {
		return err
	}
	item.normalize()
	item.bucketKey = orderedKey(item)

	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(item.bucketKey, raw)
	})
}

// GetBatch reads up to limit items in order without consuming them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	items := make([]Item, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			item, ok := decodeItem(k, v)
			if !ok {
				continue
			}
			items = append(items, item)
			if len(items) == limit {
				break
			}
		}
		return nil
	})
	return items, err
}

// Remove deletes the item. Items that were never read back from the
// store carry no key and are located by ID instead.
func (s *Store) Remove(item Item) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if len(item.bucketKey) > 0 {
			return b.Delete(item.bucketKey)
		}
		return deleteByID(b, item.ID)
	})
}

// Requeue pushes a failed item to the back of the buffer.
func (s *Store) Requeue(item Item) error {
	item.bucketKey = nil
	item.BufferedAt = time.Now()
	return s.Enqueue(item)
}

// Size reports how many items are buffered.
func (s *Store) Size() (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Cleanup drops items buffered before cutoff. Corrupt values are
// dropped too; they can never replay.
func (s *Store) Cleanup(cutoff time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil || item.BufferedAt.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return nil
}

func decodeItem(k, v []byte) (Item, bool) {
	var item Item
	if err := json.Unmarshal(v, &item); err != nil {
		return Item{}, false
	}
	item.bucketKey = append([]byte(nil), k...)
	return item, true
}

func deleteByID(b *bolt.Bucket, id string) error {
	if id == "" {
		return nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var item Item
		if err := json.Unmarshal(v, &item); err != nil {
			continue
		}
		if item.ID == id {
			return c.Delete()
		}
	}
	return nil
}

// orderedKey yields nanosecond-timestamp keys that sort chronologically,
// with the item ID as a tie-breaker.
func orderedKey(item Item) []byte {
	return []byte(fmt.Sprintf("%020d_%s", item.BufferedAt.UnixNano(), item.ID))
}
