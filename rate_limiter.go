package medcontent

import (
	"sync/atomic"
	"time"
)

// RateLimiter is a lock-free token bucket: maxTokens capacity, one token
// refilled every refillRate.
type RateLimiter struct {
	tokens     int64
	maxTokens  int64
	refillRate time.Duration
	lastRefill int64
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     int64(maxTokens),
		maxTokens:  int64(maxTokens),
		refillRate: refillRate,
		lastRefill: time.Now().UnixNano(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.refill()
	return rl.consume()
}

// Tokens reports the currently available tokens.
func (rl *RateLimiter) Tokens() int {
	return int(atomic.LoadInt64(&rl.tokens))
}

func (rl *RateLimiter) refill() {
	now := time.Now().UnixNano()

	for {
		currentTokens := atomic.LoadInt64(&rl.tokens)
		lastRefill := atomic.LoadInt64(&rl.lastRefill)

		var tokensToAdd int64
		if rl.refillRate > 0 {
			tokensToAdd = (now - lastRefill) / int64(rl.refillRate)
		}
		if tokensToAdd == 0 {
			return
		}

		newTokens := currentTokens + tokensToAdd
		if newTokens > rl.maxTokens {
			newTokens = rl.maxTokens
		}
		newLastRefill := lastRefill + tokensToAdd*int64(rl.refillRate)

		if !atomic.CompareAndSwapInt64(&rl.lastRefill, lastRefill, newLastRefill) {
			continue
		}
		atomic.StoreInt64(&rl.tokens, newTokens)
		return
	}
}

func (rl *RateLimiter) consume() bool {
	for {
		current := atomic.LoadInt64(&rl.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&rl.tokens, current, current-1) {
			return true
		}
	}
}
