package server

import (
	"fmt"

	"github.com/kbukum/captiongen/server/middleware"
	"github.com/kbukum/captiongen/util"
)

// Config holds HTTP server configuration.
type Config struct {
	Host           string                     `yaml:"host" mapstructure:"host"`
	Port           int                        `yaml:"port" mapstructure:"port"`
	ReadTimeout    int                        `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout   int                        `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds, must cover a full caption run
	IdleTimeout    int                        `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	MaxBodySize    string                     `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "200MB"
	TrustedProxies []string                   `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
	CORS           middleware.CORSConfig      `yaml:"cors" mapstructure:"cors"`
	RateLimit      middleware.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 120
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 960
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "200MB"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-Id"}
	}
	c.RateLimit.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if _, err := c.BodyLimit(); err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}
	return c.RateLimit.Validate()
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BodyLimit parses MaxBodySize into bytes.
func (c *Config) BodyLimit() (int64, error) {
	return util.ParseSize(c.MaxBodySize)
}
