// Package valkey is a rueidis-backed KV store used as a shared embedding
// cache across memdex instances.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/memdex/internal/db"
)

// Compile-time check: KV implements db.KV.
var _ db.KV = (*KV)(nil)

// Config holds connection parameters for a valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	TTL      time.Duration // per-entry expiry, 0 = no expiry
}

// KV implements db.KV via rueidis.
type KV struct {
	client rueidis.Client
	ttl    time.Duration
}

// New creates a valkey KV store.
func New(cfg Config) (*KV, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &KV{client: client, ttl: cfg.TTL}, nil
}

// Get retrieves a value by key.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := k.client.B().Get().Key(key).Build()
	data, err := k.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key, with the configured TTL if any.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	var cmd rueidis.Completed
	if k.ttl > 0 {
		cmd = k.client.B().Set().Key(key).Value(string(value)).Ex(k.ttl).Build()
	} else {
		cmd = k.client.B().Set().Key(key).Value(string(value)).Build()
	}
	if err := k.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (k *KV) Ping(ctx context.Context) error {
	cmd := k.client.B().Ping().Build()
	if err := k.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (k *KV) Close() {
	k.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (k *KV) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for valkey: %w", ctx.Err())
		case <-ticker.C:
			if err := k.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
