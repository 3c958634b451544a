package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute})
	rl.now = func() time.Time { return now }

	step := func(d time.Duration) { now = now.Add(d) }

	if ok, _ := rl.Allow("a"); !ok {
		t.Fatal("first request rejected")
	}
	step(20 * time.Second)
	if ok, _ := rl.Allow("a"); !ok {
		t.Fatal("second request rejected")
	}
	step(10 * time.Second)
	ok, retry := rl.Allow("a")
	if ok {
		t.Fatal("third request inside the window allowed")
	}
	if retry != 30*time.Second {
		t.Errorf("retry = %s, want 30s", retry)
	}

	// The first request leaves the window after 60s.
	step(31 * time.Second)
	if ok, _ := rl.Allow("a"); !ok {
		t.Fatal("request after the oldest expired rejected")
	}
}

func TestRateLimiterSweepsIdleKeys(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute})
	rl.now = func() time.Time { return now }

	for _, k := range []string{"a", "b", "c"} {
		rl.Allow(k)
	}
	now = now.Add(2 * time.Minute)
	rl.Allow("d")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.requests) != 1 {
		t.Errorf("expected idle keys to be swept, have %d", len(rl.requests))
	}
}

func TestRateLimitConfigDefaults(t *testing.T) {
	var cfg RateLimitConfig
	cfg.ApplyDefaults()
	if cfg.RequestsPerWindow != 10 || cfg.Window != time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
	cfg.Window = time.Millisecond
	if cfg.Validate() == nil {
		t.Error("sub-second window should fail")
	}
}
