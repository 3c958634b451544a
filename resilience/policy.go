package resilience

// Policy is the set of guards wrapped around one remote collaborator.
// A nil member disables that guard.
type Policy struct {
	Retry          *RetryConfig          `yaml:"retry" mapstructure:"retry"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	RateLimit      *RateLimiterConfig    `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DefaultPolicy enables every guard with its defaults.
func DefaultPolicy(name string) Policy {
	retry := DefaultRetryConfig()
	cb := DefaultCircuitBreakerConfig(name)
	rl := DefaultRateLimiterConfig(name)
	return Policy{Retry: &retry, CircuitBreaker: &cb, RateLimit: &rl}
}
