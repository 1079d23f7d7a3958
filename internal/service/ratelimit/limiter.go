package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per caller key. Buckets idle longer than
// idleAfter are evicted so the map does not accumulate one entry per client
// IP forever.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
}

type clientBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const idleAfter = 10 * time.Minute

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*clientBucket)}
}

// Allow consumes one token for key, creating the bucket on first sight with
// the given burst capacity and per-second refill.
func (l *Limiter) Allow(key string, burst int, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(rate.Limit(refillPerSec), burst)}
		l.buckets[key] = b
		l.evictIdle(now)
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.Allow()
}

func (l *Limiter) evictIdle(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) > idleAfter {
			delete(l.buckets, k)
		}
	}
}
