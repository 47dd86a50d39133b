// Package searchcache implements C2: a durable, digest-keyed cache of
// upstream search responses with a fresh/stale/expired lifecycle. The raw
// key-value primitive is an external collaborator per spec §1; EntryStore
// is the narrow interface this package needs from it, and BoltEntryStore is
// this repo's concrete adapter, grounded on the teacher's
// crawler/boltdb.go BoltDBStorage (bucket-per-concern, mutex-guarded).
package searchcache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"searchgate/internal/model"
)

// CacheEntry is spec §3's CacheEntry.
type CacheEntry struct {
	QueryDigest string
	Query       model.SearchQuery
	Response    model.UpstreamSearchResponse
	CreatedAt   time.Time
	ExpireAt    time.Time
}

// EntryStore is the generic key-value collection this package needs: put a
// new entry, and find the most recent entry for a digest.
type EntryStore interface {
	Put(entry CacheEntry) error
	Latest(digest string) (*CacheEntry, bool, error)
}

var bucketName = []byte("search_cache")

// BoltEntryStore adapts a bbolt database to EntryStore. Keys are
// digest||bigEndianUint64(createdAtUnixNano) so a prefix scan over a digest
// visits entries in creation order and the last one under the prefix is the
// most recent — satisfying spec §6's "indexed at least on
// (queryDigest, createdAt)" without a secondary index.
type BoltEntryStore struct {
	db *bolt.DB
	mu sync.RWMutex
}

// OpenBoltEntryStore opens (creating if needed) a bbolt-backed EntryStore at
// path.
func OpenBoltEntryStore(path string) (*BoltEntryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &BoltEntryStore{db: db}, nil
}

func (s *BoltEntryStore) Put(entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	key := encodeKey(entry.QueryDigest, entry.CreatedAt)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, payload)
	})
}

func (s *BoltEntryStore) Latest(digest string) (*CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := []byte(digest + "|")
	var found *CacheEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshal cache entry: %w", err)
			}
			found = &entry // cursor walks ascending, last match wins
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// DB exposes the underlying bbolt handle so other bucket-per-concern
// adapters (hostguard.NewBolt) can share the same database file instead of
// each opening their own.
func (s *BoltEntryStore) DB() *bolt.DB {
	return s.db
}

// Close releases the underlying database handle.
func (s *BoltEntryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func encodeKey(digest string, createdAt time.Time) []byte {
	key := make([]byte, 0, len(digest)+1+8)
	key = append(key, digest...)
	key = append(key, '|')
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt.UnixNano()))
	return append(key, ts[:]...)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
