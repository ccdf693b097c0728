package gateway

import (
	"sync"
	"time"
)

// Chat messages are limited per connection, not per identity: a
// reconnect starts with a fresh bucket.
const (
	messageBurst      = 20 // bucket capacity
	messagesPerSecond = 10 // refill rate
)

// tokenBucket guards the send-message path. Refill is fractional, so
// capacity recovers continuously rather than in whole-second steps.
type tokenBucket struct {
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
	mu       sync.Mutex
}

func newTokenBucket(capacity, rate float64) *tokenBucket {
	return &tokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     rate,
		last:     time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
