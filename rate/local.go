package rate

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the per-key limiter map. When exceeded the map
// is dropped wholesale; a momentary reset is preferable to unbounded
// growth from spoofed keys.
const maxTrackedKeys = 16384

// LocalLimiter is a per-process token-bucket limiter keyed by caller.
// It smooths bursts before they reach the shared store and keeps some
// throttling in effect when the store is down. It is not a substitute
// for the shared [Limiter]: each process instance has its own buckets.
type LocalLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewLocalLimiter admits eventsPerSecond sustained with the given burst
// per key.
func NewLocalLimiter(eventsPerSecond float64, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{
		limit:    rate.Limit(eventsPerSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether key may proceed right now.
func (l *LocalLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
