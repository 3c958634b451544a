package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/captiongen/resilience"
	"github.com/kbukum/captiongen/security"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Headers are sent with every request.
	Headers map[string]string   `yaml:"headers" mapstructure:"headers"`
	Policy  resilience.Policy   `yaml:"resilience" mapstructure:"resilience"`
	TLS     *security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	Auth *AuthConfig `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if r := c.Policy.Retry; r != nil && r.MaxAttempts < 0 {
		return fmt.Errorf("httpclient: retry.max_attempts must not be negative")
	}
	return c.TLS.Validate()
}
