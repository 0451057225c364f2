// Package ratelimit throttles MCP requests arriving over the HTTP transport.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket: it holds up to burst tokens and refills at
// rate tokens per second. A rate of zero or less disables limiting.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
}

// New creates a limiter allowing ratePerSecond requests with the given burst
func New(ratePerSecond float64, burst int) *Limiter {
	return newWithClock(ratePerSecond, burst, time.Now)
}

func newWithClock(ratePerSecond float64, burst int, now func() time.Time) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: ratePerSecond,
		lastRefill: now(),
		now:        now,
	}
}

// Enabled reports whether the limiter throttles at all
func (l *Limiter) Enabled() bool {
	return l != nil && l.refillRate > 0
}

func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Allow consumes a token if one is available
func (l *Limiter) Allow() bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// RetryAfter estimates how long until the next token is available
func (l *Limiter) RetryAfter() time.Duration {
	if !l.Enabled() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}
