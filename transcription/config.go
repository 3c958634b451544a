package transcription

import (
	"fmt"
	"time"
)

// Config selects and tunes the recognizer.
type Config struct {
	// Provider is the recognizer used for every request.
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`
	// Fallback, when set, is tried if Provider is unavailable.
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
	Language string `yaml:"language" mapstructure:"language"`
	// RequireOnStartup makes an unreachable recognizer fatal at startup.
	RequireOnStartup bool          `yaml:"require_on_startup" mapstructure:"require_on_startup"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "vosk"
	}
	if c.Language == "" {
		c.Language = "hi"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Minute
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("recognizer.provider is required")
	}
	if c.Fallback == c.Provider {
		return fmt.Errorf("recognizer.fallback must differ from recognizer.provider")
	}
	return nil
}
