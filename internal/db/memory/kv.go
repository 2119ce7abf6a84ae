// Package memory is an in-process KV backend, the default embedding cache
// when no valkey address is configured.
package memory

import (
	"context"
	"sync"

	"github.com/kailas-cloud/memdex/internal/db"
)

// Compile-time check: KV implements db.KV.
var _ db.KV = (*KV)(nil)

// KV is a concurrency-safe in-process key-value store with a soft entry cap.
// When the cap is exceeded the map is dropped wholesale; embedding cache
// entries are cheap to recompute.
type KV struct {
	mu         sync.RWMutex
	data       map[string][]byte
	maxEntries int
}

// DefaultMaxEntries bounds the cache before a wholesale drop.
const DefaultMaxEntries = 100000

// New creates an in-process KV store. maxEntries <= 0 uses the default cap.
func New(maxEntries int) *KV {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &KV{data: make(map[string][]byte), maxEntries: maxEntries}
}

// Get retrieves a value by key.
func (k *KV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores a value at the given key.
func (k *KV) Set(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.data) >= k.maxEntries {
		k.data = make(map[string][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	k.data[key] = v
	return nil
}

// Ping always succeeds for the in-process backend.
func (k *KV) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (k *KV) Close() {}

// Len returns the current entry count.
func (k *KV) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.data)
}
