package ratelimit

import (
	"sync"
	"time"
)

// Token bucket for one connection's inbound frames
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	lastUsed   time.Time
	now        func() time.Time

	// Requests turned away since creation
	rejected int

	mu sync.Mutex
}

func newLimiterWithClock(rate float64, burst int, now func() time.Time) *Limiter {
	t := now()
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: t,
		lastUsed:   t,
		now:        now,
	}
}

func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	l.lastUsed = l.lastUpdate

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}

	l.rejected++
	return false
}

func (l *Limiter) Rejected() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejected
}

// Caller holds the lock
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
}

// Reports whether nothing has been asked of the limiter for at least d
func (l *Limiter) idle(d time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Sub(l.lastUsed) >= d
}

// Limiters keyed by connection ID
type ClientLimiters struct {
	limiters        map[string]*Limiter
	rate            float64
	burst           int
	now             func() time.Time
	mu              sync.RWMutex
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

func NewClientLimiters(rate float64, burst int) *ClientLimiters {
	cl := &ClientLimiters{
		limiters:        make(map[string]*Limiter),
		rate:            rate,
		burst:           burst,
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		stop:            make(chan struct{}),
	}
	go cl.cleanup()
	return cl
}

func (cl *ClientLimiters) Get(clientID string) *Limiter {
	cl.mu.RLock()
	limiter, ok := cl.limiters[clientID]
	cl.mu.RUnlock()

	if ok {
		return limiter
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if limiter, ok := cl.limiters[clientID]; ok {
		return limiter
	}

	limiter = newLimiterWithClock(cl.rate, cl.burst, cl.now)
	cl.limiters[clientID] = limiter
	return limiter
}

func (cl *ClientLimiters) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	delete(cl.limiters, clientID)
}

func (cl *ClientLimiters) Len() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.limiters)
}

func (cl *ClientLimiters) Stop() {
	cl.stopOnce.Do(func() { close(cl.stop) })
}

func (cl *ClientLimiters) cleanup() {
	ticker := time.NewTicker(cl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stop:
			return
		case <-ticker.C:
			cl.evictIdle()
		}
	}
}

// Drops limiters whose connection went away without Remove
func (cl *ClientLimiters) evictIdle() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	evicted := 0
	for id, l := range cl.limiters {
		if l.idle(cl.cleanupInterval) {
			delete(cl.limiters, id)
			evicted++
		}
	}
	return evicted
}
