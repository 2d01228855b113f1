// Package ratelimit caps how many notifications a channel may send per
// window. Telegram rejects bursts to the same chat, so the dispatcher drops
// messages over the cap instead of letting the API refuse them.
package ratelimit

import (
	"sync"
	"time"

	"grimm.is/opnwatch/internal/clock"
)

// Limiter holds one fixed-window bucket per key.
type Limiter struct {
	limit    int
	interval time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

// NewLimiter allows limit events per key in every interval. A nil clock
// uses the real one.
func NewLimiter(limit int, interval time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Limiter{
		limit:    limit,
		interval: interval,
		clock:    clk,
		buckets:  make(map[string]*bucket),
	}
}

// Allow takes a token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.lastFill) >= l.interval {
		b = &bucket{tokens: l.limit, lastFill: now}
		l.buckets[key] = b
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
