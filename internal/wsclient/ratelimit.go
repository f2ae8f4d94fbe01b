package wsclient

import (
	"sync"
	"time"
)

// tokenBucket is a continuous-refill token-bucket limiter for outbound
// frames (§4.1: 2000/minute per IP). Unlike a blocking rate limiter, the
// session must never stall its single write path waiting for a token —
// post() reports RateLimited immediately instead.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastTime time.Time
}

func newTokenBucket(capacity int, perMinute int) *tokenBucket {
	return &tokenBucket{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     float64(perMinute) / 60.0,
		lastTime: time.Now(),
	}
}

// tryTake attempts to debit one token, refilling first. Reports whether
// a token was available.
func (tb *tokenBucket) tryTake() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastTime).Seconds()
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastTime = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}
