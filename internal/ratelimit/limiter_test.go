package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiter_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newWithClock(2, 3, clock.now)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("expected burst to be exhausted")
	}
	if got := l.RetryAfter(); got != 500*time.Millisecond {
		t.Errorf("RetryAfter() = %v, want 500ms", got)
	}

	clock.advance(500 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected one token after 500ms at 2/s")
	}
	if l.Allow() {
		t.Error("expected no second token yet")
	}

	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("expected refill capped at burst, request %d denied", i)
		}
	}
	if l.Allow() {
		t.Error("expected tokens capped at burst")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(0, 1)
	if l.Enabled() {
		t.Fatal("expected zero rate to disable limiting")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatal("disabled limiter must always allow")
		}
	}
	if l.RetryAfter() != 0 {
		t.Error("expected no retry delay")
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow() {
		t.Error("nil limiter must allow")
	}
}
