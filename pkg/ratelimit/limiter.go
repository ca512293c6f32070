package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed right now without blocking
	Allow() bool
	// Wait blocks until the rate limit allows another request
	Wait()
	// Reset resets the rate limiter state
	Reset()
}

// IntervalGate enforces a minimum delay between consecutive requests.
// A single gate is shared by every worker using the same client, so the
// minimum-delay invariant holds globally rather than per goroutine.
type IntervalGate struct {
	minDelay time.Duration
	next     time.Time // earliest time the next request may start
	mu       sync.Mutex
}

// NewIntervalGate creates a gate with the given minimum inter-request delay
func NewIntervalGate(minDelay time.Duration) *IntervalGate {
	return &IntervalGate{minDelay: minDelay}
}

// Allow checks if a request can proceed immediately, claiming the slot if so
func (g *IntervalGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Before(g.next) {
		return false
	}
	g.next = now.Add(g.minDelay)
	return true
}

// Wait blocks until the minimum delay since the previous request has elapsed.
// Each caller reserves its own slot, so concurrent callers are spaced out
// one minimum delay apart rather than released in a burst.
func (g *IntervalGate) Wait() {
	g.mu.Lock()
	now := time.Now()
	start := g.next
	if start.Before(now) {
		start = now
	}
	g.next = start.Add(g.minDelay)
	g.mu.Unlock()

	if wait := time.Until(start); wait > 0 {
		time.Sleep(wait)
	}
}

// Reset clears the gate so the next request proceeds without delay
func (g *IntervalGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = time.Time{}
}
