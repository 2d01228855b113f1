package ratelimit

import (
	"sync"
	"testing"
	"time"

	"grimm.is/opnwatch/internal/clock"
)

var start = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func TestLimiter_Allow_Basic(t *testing.T) {
	l := NewLimiter(3, time.Minute, clock.NewMockClock(start))

	for i := 0; i < 3; i++ {
		if !l.Allow("telegram") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if l.Allow("telegram") {
		t.Error("4th request should be denied (over limit)")
	}
}

func TestLimiter_Allow_DifferentKeys(t *testing.T) {
	l := NewLimiter(2, time.Minute, clock.NewMockClock(start))

	for i := 0; i < 2; i++ {
		if !l.Allow("telegram") {
			t.Errorf("telegram request %d should be allowed", i+1)
		}
		if !l.Allow("ntfy") {
			t.Errorf("ntfy request %d should be allowed", i+1)
		}
	}
	if l.Allow("telegram") {
		t.Error("telegram should be rate limited")
	}
	if l.Allow("ntfy") {
		t.Error("ntfy should be rate limited")
	}
}

func TestLimiter_Allow_Refill(t *testing.T) {
	clk := clock.NewMockClock(start)
	l := NewLimiter(2, time.Minute, clk)

	l.Allow("telegram")
	l.Allow("telegram")
	if l.Allow("telegram") {
		t.Error("Should be rate limited before interval")
	}

	clk.Advance(59 * time.Second)
	if l.Allow("telegram") {
		t.Error("Should still be rate limited inside the window")
	}

	clk.Advance(time.Second)
	for i := 0; i < 2; i++ {
		if !l.Allow("telegram") {
			t.Errorf("request %d should be allowed after the window refilled", i+1)
		}
	}
	if l.Allow("telegram") {
		t.Error("refill restores the limit, not more")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(500, time.Minute, clock.NewMockClock(start))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if l.Allow("telegram") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 500 {
		t.Errorf("allowed = %d, want exactly 500", allowed)
	}
}
