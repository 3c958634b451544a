package llm

import (
	"fmt"
	"time"

	"github.com/kbukum/captiongen/resilience"
	"github.com/kbukum/captiongen/security"
)

// Defaults target DeepInfra's OpenAI-compatible endpoint.
const (
	DefaultDialect     = "openai"
	DefaultBaseURL     = "https://api.deepinfra.com/v1/openai"
	DefaultModel       = "meta-llama/Meta-Llama-3.1-70B-Instruct"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.1
	DefaultTopP        = 0.9
)

// Config configures an Adapter.
type Config struct {
	Dialect   string `yaml:"dialect" mapstructure:"dialect"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
	// Temperature and TopP are optional so an explicit 0 is kept.
	Temperature *float64      `yaml:"temperature" mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`
	TopP        *float64      `yaml:"top_p" mapstructure:"top_p" validate:"omitempty,gte=0,lte=1"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`

	Resilience resilience.Policy   `yaml:"resilience" mapstructure:"resilience"`
	TLS        *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills unset fields. Guards left nil in Resilience get their
// defaults.
func (c *Config) ApplyDefaults() {
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == nil {
		c.Temperature = Float(DefaultTemperature)
	}
	if c.TopP == nil {
		c.TopP = Float(DefaultTopP)
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}

	d := resilience.DefaultPolicy("llm")
	if c.Resilience.Retry == nil {
		c.Resilience.Retry = d.Retry
	}
	if c.Resilience.CircuitBreaker == nil {
		c.Resilience.CircuitBreaker = d.CircuitBreaker
	}
	if c.Resilience.RateLimit == nil {
		c.Resilience.RateLimit = d.RateLimit
	}
}

// Validate checks that a usable key is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (or set DEEPINFRA_API_KEY)")
	}
	return nil
}

// Float returns a pointer to v for the optional sampling fields.
func Float(v float64) *float64 { return &v }
