// Package hostguard implements the circuit-breaker host set described in
// spec §5: an add-only set of hostnames the Browser and C7 must refuse to
// crawl, to prevent a request from recursively scraping its own server.
// The shape is lifted from the teacher's crawler/boltdb.go BoltDBStorage,
// repurposed here from a visited-request-id tracker into a blocked-host
// tracker: same RWMutex-guarded bbolt bucket idiom, different key space.
package hostguard

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("blocked_hosts")

// Guard is an add-only, conservative circuit breaker: false positives only
// cause extra blocking, never under-blocking, per spec §5.
type Guard struct {
	mu  sync.RWMutex
	db  *bolt.DB
	mem map[string]bool
}

// New builds an in-memory Guard. Callers that want the block list to survive
// process restarts use NewBolt instead.
func New() *Guard {
	return &Guard{mem: make(map[string]bool)}
}

// NewBolt builds a Guard backed by a bbolt bucket in db, so the block list
// (notably the server's own hostname) persists across restarts.
func NewBolt(db *bolt.DB) (*Guard, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create hostguard bucket: %w", err)
	}
	return &Guard{db: db}, nil
}

// Block adds host to the circuit-breaker set.
func (g *Guard) Block(host string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db == nil {
		g.mem[host] = true
		return nil
	}
	return g.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(host), []byte("1"))
	})
}

// Blocked reports whether host is in the circuit-breaker set.
func (g *Guard) Blocked(host string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.db == nil {
		return g.mem[host]
	}
	var blocked bool
	g.db.View(func(tx *bolt.Tx) error {
		blocked = tx.Bucket(bucketName).Get([]byte(host)) != nil
		return nil
	})
	return blocked
}
