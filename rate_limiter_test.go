package medcontent

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiterConsumesTokens(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d should pass with tokens left", i)
		}
	}
	if rl.Allow() {
		t.Error("empty bucket must reject")
	}
	if rl.Tokens() != 0 {
		t.Errorf("Tokens = %d, want 0", rl.Tokens())
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(2, 10*time.Millisecond)

	rl.Allow()
	rl.Allow()
	if rl.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(25 * time.Millisecond)
	if !rl.Allow() {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiterCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(2, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	rl.Allow()

	if rl.Tokens() > 2 {
		t.Errorf("Tokens = %d, refill must not exceed capacity", rl.Tokens())
	}
}

func TestRateLimiterConcurrentConsumption(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)

	var passed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	if passed.Load() != 50 {
		t.Errorf("passed = %d, want exactly the bucket capacity", passed.Load())
	}
}
