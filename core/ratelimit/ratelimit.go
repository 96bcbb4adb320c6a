// Package ratelimit implements per-key token bucket admission control with
// continuous refill. Buckets live in process memory only; a first-seen key
// starts with a full burst allowance.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter admits at most rate requests per second per key, with a burst
// capacity of twice the rate (a two-second allowance at the steady rate).
// A non-positive rate disables limiting entirely.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

// NewLimiter creates a limiter admitting rate requests per second per key.
func NewLimiter(rate float64) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   rate * 2,
	}
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool {
	return l.rate > 0
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() float64 {
	return l.burst
}

// Allow refills the key's bucket proportionally to elapsed wall-clock time,
// then admits the request iff at least one full token is available,
// consuming exactly one. Rejections consume nothing.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.last).Seconds()
		if elapsed > 0 {
			b.tokens = min(l.burst, b.tokens+elapsed*l.rate)
		}
		b.last = now
	}

	if b.tokens < 1.0 {
		return false
	}

	b.tokens -= 1.0
	return true
}

// Tokens returns the key's current token count without consuming anything.
// A key that has never been seen reports the full burst allowance.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return l.burst
	}

	elapsed := time.Since(b.last).Seconds()
	if elapsed <= 0 {
		return b.tokens
	}
	return min(l.burst, b.tokens+elapsed*l.rate)
}
