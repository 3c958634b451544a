package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	Name string `yaml:"-" mapstructure:"-"`
	// Rate is tokens added per second.
	Rate  float64 `yaml:"rate" mapstructure:"rate"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// DefaultRateLimiterConfig allows 2 calls per second with bursts of 4.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{Name: name, Rate: 2, Burst: 4}
}

// RateLimiter is a token bucket that callers wait on before each call.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRateLimiterConfig(cfg.Name).Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.Rate))
	}
	return &RateLimiter{cfg: cfg, tokens: float64(cfg.Burst), last: time.Now()}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait takes a token, blocking until one is due or ctx ends. A cancelled
// wait still holds its reservation.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.refill()
	rl.tokens--
	deficit := -rl.tokens
	rl.mu.Unlock()

	if deficit <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(deficit / rl.cfg.Rate * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.cfg.Rate
	rl.last = now
	if burst := float64(rl.cfg.Burst); rl.tokens > burst {
		rl.tokens = burst
	}
}
