package ratelimit

import (
	"testing"
	"time"
)

type manualClock struct {
	t time.Time
}

func (c *manualClock) Now() time.Time { return c.t }

func TestLimiterBurst(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newLimiterWithClock(10, 3, clock.Now)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Expected message %d within burst to be allowed", i)
		}
	}
	if l.Allow() {
		t.Error("Expected message beyond burst to be rejected")
	}
}

func TestLimiterRefill(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newLimiterWithClock(10, 2, clock.Now)

	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("Expected empty bucket")
	}

	clock.t = clock.t.Add(100 * time.Millisecond)
	if !l.Allow() {
		t.Error("Expected one token after 100ms at 10/s")
	}
	if l.Allow() {
		t.Error("Expected only one token to refill")
	}

	// Refill never exceeds burst
	clock.t = clock.t.Add(time.Hour)
	if !l.AllowN(2) {
		t.Error("Expected full bucket after a long pause")
	}
	if l.Allow() {
		t.Error("Bucket should be capped at burst")
	}
}

func TestLimiterCountsRejections(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newLimiterWithClock(1, 1, clock.Now)

	l.Allow()
	for i := 0; i < 4; i++ {
		l.Allow()
	}
	if l.Rejected() != 4 {
		t.Errorf("Expected 4 rejections, got %d", l.Rejected())
	}

	// Refills do not forgive earlier violations
	clock.t = clock.t.Add(time.Minute)
	l.Allow()
	if l.Rejected() != 4 {
		t.Errorf("Expected rejections to stay at 4, got %d", l.Rejected())
	}
}

func TestClientLimiters(t *testing.T) {
	cl := NewClientLimiters(10, 5)
	defer cl.Stop()

	a := cl.Get("a")
	if cl.Get("a") != a {
		t.Error("Expected the same limiter for the same client")
	}
	cl.Get("b")
	if cl.Len() != 2 {
		t.Errorf("Expected 2 limiters, got %d", cl.Len())
	}

	cl.Remove("a")
	if cl.Len() != 1 {
		t.Errorf("Expected 1 limiter, got %d", cl.Len())
	}

	cl.Stop()
	cl.Stop()
}

func TestClientLimitersEvictIdle(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	cl := &ClientLimiters{
		limiters:        make(map[string]*Limiter),
		rate:            10,
		burst:           5,
		now:             clock.Now,
		cleanupInterval: time.Minute,
		stop:            make(chan struct{}),
	}

	cl.Get("stale").Allow()
	clock.t = clock.t.Add(30 * time.Second)
	cl.Get("fresh").Allow()
	clock.t = clock.t.Add(45 * time.Second)

	if n := cl.evictIdle(); n != 1 {
		t.Errorf("Expected 1 eviction, got %d", n)
	}
	if cl.Len() != 1 {
		t.Fatalf("Expected 1 limiter left, got %d", cl.Len())
	}
	cl.mu.RLock()
	_, ok := cl.limiters["fresh"]
	cl.mu.RUnlock()
	if !ok {
		t.Error("Expected the recently used limiter to survive")
	}
}
