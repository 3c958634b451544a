package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/captiongen/errors"
)

// RateLimitConfig configures the sliding-window limiter on the upload route.
type RateLimitConfig struct {
	// RequestsPerWindow per client; a negative value disables limiting.
	RequestsPerWindow int           `yaml:"requests_per_window" mapstructure:"requests_per_window"`
	Window            time.Duration `yaml:"window" mapstructure:"window"`
}

// ApplyDefaults sets 10 requests per minute.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
}

// Validate checks the configuration.
func (c *RateLimitConfig) Validate() error {
	if c.Window < time.Second {
		return fmt.Errorf("server.rate_limit.window must be at least 1s (got: %s)", c.Window)
	}
	return nil
}

// Enabled reports whether limiting is on.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(*gin.Context) string

// IPBasedKey keys on the client IP as resolved by Gin's trusted proxies.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}

// RateLimiter is a per-key sliding-window limiter.
type RateLimiter struct {
	limit  int
	window time.Duration
	key    KeyFunc
	now    func() time.Time

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter creates a limiter keyed by client IP.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg.ApplyDefaults()
	return &RateLimiter{
		limit:    cfg.RequestsPerWindow,
		window:   cfg.Window,
		key:      IPBasedKey,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
}

// Handler returns the Gin middleware. Rejected requests get 429 with
// Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}
		ok, retry := rl.Allow(rl.key(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			abort(c, apperrors.RateLimited())
			return
		}
		c.Next()
	}
}

// Allow records a request for key. When the window is full it returns false
// and how long until the oldest request leaves it.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	valid := filterByTime(rl.requests[key], cutoff)
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false, valid[0].Sub(cutoff)
	}
	rl.requests[key] = append(valid, now)
	return true, 0
}

// sweep drops keys with no requests inside the window.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, times := range rl.requests {
		if valid := filterByTime(times, cutoff); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func filterByTime(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
