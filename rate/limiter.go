// Package rate throttles authentication attempts per principal or IP.
//
// The shared-store [Limiter] gives fixed-window semantics that hold
// across process instances: the increment-and-check is a single atomic
// store operation, so concurrent bursts can never admit more than the
// limit. [LocalLimiter] adds optional per-process burst smoothing in
// front of the store.
package rate

import (
	"context"
	"errors"
	"time"

	"github.com/Netrun-Systems/netrun-auth/kvstore"
)

// ErrLimited is returned by CheckAndIncrement when the key's budget for
// the current window is exhausted.
var ErrLimited = errors.New("rate limited")

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed bool
	// Remaining is how many more calls the window admits.
	Remaining int64
	// RetryAfter is the time until the window resets. Derived from the
	// actual window boundary, not a constant; zero when Allowed.
	RetryAfter time.Duration
}

// Limiter counts actions per key in fixed windows on a shared store.
type Limiter struct {
	store  kvstore.Store
	prefix string
}

// New creates a limiter. prefix namespaces all limiter keys in the
// store (e.g. "na:rl").
func New(store kvstore.Store, prefix string) *Limiter {
	if prefix == "" {
		prefix = "na:rl"
	}
	return &Limiter{store: store, prefix: prefix}
}

// CheckAndIncrement counts this call against key's window and reports
// whether it is admitted. The count is charged even when the call is
// rejected, so hammering a limited key extends nothing but learns
// nothing either. Store failures surface kvstore.ErrUnavailable;
// callers choose fail-open or fail-closed.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	if limit <= 0 {
		return Result{}, errors.New("rate: limit must be positive")
	}

	count, remaining, err := l.store.Increment(ctx, l.prefix+":"+key, window)
	if err != nil {
		return Result{}, err
	}

	if count > limit {
		return Result{Allowed: false, Remaining: 0, RetryAfter: remaining}, ErrLimited
	}
	return Result{Allowed: true, Remaining: limit - count}, nil
}

// Reset clears key's window, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, l.prefix+":"+key)
}
