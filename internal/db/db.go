// Package db defines the key-value contract used for the shared embedding
// cache. The default backend is in-process; valkey provides a shared cache
// across instances.
package db

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for key-value operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// KV is the key-value store contract.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close()
}

// ReadinessWaiter is implemented by backends that need a startup probe.
type ReadinessWaiter interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Op constants name KV commands for error context.
const (
	OpGet = "GET"
	OpSet = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
