// Package kvstore abstracts the expiring key-value store that backs the
// credential store, the session store and the refresh-token registry.
//
// Every operation is atomic at the single-key level; no cross-key
// transactions are offered. Expiry is enforced by the store itself.
package kvstore

import (
	"context"
	"time"
)

// Store is an expiring key-value map.
type Store interface {
	// Set writes value under key, replacing any previous value. A ttl <= 0
	// stores the value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key or common.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// TTL returns the remaining lifetime of key, 0 for keys without expiry,
	// or common.ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
