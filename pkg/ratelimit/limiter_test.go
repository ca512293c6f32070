package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestIntervalGateAllow(t *testing.T) {
	g := NewIntervalGate(100 * time.Millisecond)

	if !g.Allow() {
		t.Error("Expected first request to be allowed")
	}
	if g.Allow() {
		t.Error("Expected second immediate request to be denied")
	}

	time.Sleep(120 * time.Millisecond)
	if !g.Allow() {
		t.Error("Expected request to be allowed after the delay elapsed")
	}
}

func TestIntervalGateWaitSpacing(t *testing.T) {
	g := NewIntervalGate(50 * time.Millisecond)

	start := time.Now()
	g.Wait()
	g.Wait()
	g.Wait()
	elapsed := time.Since(start)

	// Three requests require at least two full delays between them
	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected at least 100ms for three requests, got %v", elapsed)
	}
}

func TestIntervalGateSharedAcrossGoroutines(t *testing.T) {
	g := NewIntervalGate(30 * time.Millisecond)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Wait()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Four concurrent requests must be spaced by three full delays
	if elapsed < 90*time.Millisecond {
		t.Errorf("Expected concurrent requests to be serialized, got %v", elapsed)
	}
}

func TestIntervalGateReset(t *testing.T) {
	g := NewIntervalGate(time.Hour)

	if !g.Allow() {
		t.Error("Expected first request to be allowed")
	}
	if g.Allow() {
		t.Error("Expected request to be denied before reset")
	}

	g.Reset()
	if !g.Allow() {
		t.Error("Expected request to be allowed after reset")
	}
}
