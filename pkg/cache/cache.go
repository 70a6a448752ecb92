// Package cache provides a tenant-scoped cache for precomputed retrieval
// inputs, backed by Badger. Keys are namespaced by group ID so entries can
// never be read across the tenant boundary. Entries carry an explicit TTL;
// invalidation is TTL expiry plus InvalidateGroup for full-group resets.
// The cache is injected as a dependency, never a package global.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/graphrank/pkg/types"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = badger.ErrKeyNotFound

// TenantCache caches per-group retrieval inputs (high-degree fallback node
// sets, degree snapshots) with TTL invalidation.
type TenantCache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) a cache at path. An empty path opens an
// in-memory cache, used by tests and by deployments without a disk budget.
func Open(path string, ttl time.Duration) (*TenantCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TenantCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying store.
func (c *TenantCache) Close() error {
	return c.db.Close()
}

func cacheKey(groupID, key string) []byte {
	return []byte(fmt.Sprintf("group/%s/%s", groupID, key))
}

// Set stores value under the tenant-scoped key with the cache TTL.
func (c *TenantCache) Set(groupID, key string, value interface{}) error {
	if groupID == "" {
		return types.ErrEmptyGroupID
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(groupID, key), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// Get loads the tenant-scoped key into out. Returns ErrMiss when absent.
func (c *TenantCache) Get(groupID, key string, out interface{}) error {
	if groupID == "" {
		return types.ErrEmptyGroupID
	}
	return c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(groupID, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// GetNodes is a typed convenience for cached node sets.
func (c *TenantCache) GetNodes(groupID, key string) ([]*types.Node, error) {
	var nodes []*types.Node
	if err := c.Get(groupID, key, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// SetNodes caches a node set under the tenant-scoped key.
func (c *TenantCache) SetNodes(groupID, key string, nodes []*types.Node) error {
	return c.Set(groupID, key, nodes)
}

// InvalidateGroup drops every cached entry for one group.
func (c *TenantCache) InvalidateGroup(groupID string) error {
	if groupID == "" {
		return types.ErrEmptyGroupID
	}
	prefix := []byte(fmt.Sprintf("group/%s/", groupID))
	return c.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
