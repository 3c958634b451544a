package captions

import (
	"fmt"
	"strings"
	"time"
)

// Config controls pipeline concurrency, limits and retention.
type Config struct {
	// MaxConcurrent caps simultaneous runs; more wait up to MaxWait, then
	// are rejected as busy.
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0"`
	MaxWait       time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
	// Timeout bounds one run from upload to stored subtitle.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	TempPrefix   string `yaml:"temp_prefix" mapstructure:"temp_prefix"`
	OutputPrefix string `yaml:"output_prefix" mapstructure:"output_prefix"`

	// Retention is how long finished jobs and their subtitles are kept.
	// 0 keeps them forever.
	Retention     time.Duration `yaml:"retention" mapstructure:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.MaxWait == 0 {
		c.MaxWait = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Minute
	}
	if c.TempPrefix == "" {
		c.TempPrefix = "tmp"
	}
	if c.OutputPrefix == "" {
		c.OutputPrefix = "srt"
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Hour
	}
	c.TempPrefix = strings.Trim(c.TempPrefix, "/")
	c.OutputPrefix = strings.Trim(c.OutputPrefix, "/")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("pipeline.timeout must be positive")
	}
	if c.Retention < 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("pipeline.retention must be >= 0 and pipeline.sweep_interval > 0")
	}
	if c.TempPrefix == c.OutputPrefix {
		return fmt.Errorf("pipeline.temp_prefix and pipeline.output_prefix must differ")
	}
	return nil
}
