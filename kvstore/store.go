// Package kvstore defines the key-value contract the auth engine needs
// from shared state: TTL'd puts, reads, an atomic compare-and-swap for
// refresh rotation, and an atomic windowed counter for rate limiting.
//
// The engine owns no background sweeps; every key it writes carries a
// TTL and is garbage-collected by the store. The compare-and-swap is the
// single operation the engine relies on for cross-instance atomicity, so
// implementations must make it a conditional server-side write, not a
// read-then-write.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when a store round-trip fails or times out.
// It is distinct from "key absent" so callers can apply their own
// fail-open/fail-closed policy.
var ErrUnavailable = errors.New("kv store unavailable")

// Store is the collaborator interface supplied to the engine. All calls
// honor ctx cancellation and an implementation-level operation timeout.
type Store interface {
	// Put writes value under key with the given TTL, replacing any
	// existing value. ttl must be positive.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ok=false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// CompareAndSwap atomically replaces key's value with next iff the
	// current value equals expected. The key's remaining TTL is
	// preserved. Returns false when the key is absent or holds a
	// different value.
	CompareAndSwap(ctx context.Context, key, expected, next string) (bool, error)

	// Increment atomically increments the counter at key, starting the
	// window (TTL) on the first hit. Returns the post-increment count
	// and the time remaining until the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)

	// Delete removes key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error
}
