// Package ratelimit implements a keyed token bucket. The gateway uses it to
// cap outbound calls per upstream so a burst of ticks cannot exhaust the
// provider's request budget.
package ratelimit

import (
	"sync"
	"time"
)

// idleEviction is how long an untouched bucket survives before pruning.
const idleEviction = 10 * time.Minute

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// Limiter is a set of token buckets indexed by key. Capacity and refill rate
// are supplied per call so different upstreams can share one limiter.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	lastGC  time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket), lastGC: time.Now()}
}

// Allow consumes one token for key if available. A new key starts full.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, lastFill: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastFill).Seconds() * refillPerSec
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastFill = now

	if now.Sub(l.lastGC) > idleEviction {
		l.prune(now)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens reports the current token count for key, refill applied. Zero for
// unknown keys.
func (l *Limiter) Tokens(key string, capacity, refillPerSec float64) float64 {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	t := b.tokens + now.Sub(b.lastFill).Seconds()*refillPerSec
	if t > capacity {
		t = capacity
	}
	return t
}

// prune drops buckets idle past the eviction window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastFill) > idleEviction {
			delete(l.buckets, key)
		}
	}
	l.lastGC = now
}
