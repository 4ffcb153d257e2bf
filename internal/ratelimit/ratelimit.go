// Package ratelimit implements a token-bucket limiter. Callers pass the
// current time explicitly so tests can drive the bucket deterministically.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket refilling at a fixed rate up to a capacity.
type Bucket struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	last         time.Time
}

// NewBucket creates a full bucket with the given capacity and refill rate.
func NewBucket(capacity int, refillPerSec float64, now time.Time) *Bucket {
	return &Bucket{
		capacity:     float64(capacity),
		tokens:       float64(capacity),
		refillPerSec: refillPerSec,
		last:         now,
	}
}

// Allow consumes one token if available and reports whether it did.
func (b *Bucket) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the current token count after refilling to now.
func (b *Bucket) Tokens(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	return b.tokens
}

func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}
