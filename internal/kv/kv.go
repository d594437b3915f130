// Package kv defines the key-value contract every coordination component is
// built on: plain puts with per-key TTL, point gets, deletes, and prefix
// listing. No transactions and no multi-key atomicity — callers must design
// every multi-step transition to be safe if interrupted partway.
package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when a key is absent or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal contract required by the queue, lease, retry and
// dedup layers. Same-process read-after-write must be consistent; cross
// process visibility may lag.
type Store interface {
	// Put writes value under key. A ttl of zero stores the key without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns up to limit keys under prefix in ascending lexicographic
	// order. The result is a snapshot, not a live view. limit <= 0 means
	// no limit.
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Conditional is an optional capability: stores that can create a key
// atomically only-if-absent implement it. The lease manager prefers it over
// the racy get-then-put sequence whenever available.
type Conditional interface {
	// PutIfAbsent writes value under key only if the key does not exist.
	// It reports whether this call created the key.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}
