package tools

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*ToolRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewToolRateLimiter(limit, window)
	rl.now = clock.now
	return rl, clock
}

func TestNewToolRateLimiterDisabled(t *testing.T) {
	for _, limit := range []int{0, -5} {
		if rl := NewToolRateLimiter(limit, time.Minute); rl != nil {
			t.Errorf("NewToolRateLimiter(%d) = %v, want nil", limit, rl)
		}
	}
}

func TestToolRateLimiterBlocksOverLimit(t *testing.T) {
	rl, _ := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if err := rl.Allow("agent-a"); err != nil {
			t.Fatalf("call %d should be allowed: %v", i, err)
		}
	}
	if err := rl.Allow("agent-a"); err == nil {
		t.Error("4th call should be blocked")
	}
	if err := rl.Allow("agent-b"); err != nil {
		t.Errorf("separate key should be allowed: %v", err)
	}
}

func TestToolRateLimiterWindowSlides(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Minute)
	rl.Allow("k")
	clock.advance(30 * time.Second)
	rl.Allow("k")
	if err := rl.Allow("k"); err == nil {
		t.Fatal("should be blocked at limit")
	}

	clock.advance(31 * time.Second) // first call leaves the window
	if err := rl.Allow("k"); err != nil {
		t.Errorf("should be allowed after the oldest call expires: %v", err)
	}
	if err := rl.Allow("k"); err == nil {
		t.Error("window should be full again")
	}
}

func TestToolRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(10, time.Minute)
	rl.Allow("old")
	clock.advance(45 * time.Second)
	rl.Allow("fresh")
	clock.advance(30 * time.Second)
	rl.Cleanup()

	if _, ok := rl.calls["old"]; ok {
		t.Error("expired key should be removed")
	}
	if n := len(rl.calls["fresh"]); n != 1 {
		t.Errorf("fresh key has %d entries, want 1", n)
	}
}
