package transliterate

import "fmt"

// DefaultChunkSize is how many blocks go into one model request.
const DefaultChunkSize = 40

// Config controls the rewrite step.
type Config struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	ChunkSize int  `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=0"`
	// FallbackToSource keeps the recognized text of a chunk whose reply
	// cannot be matched block for block, instead of failing the run.
	FallbackToSource bool `yaml:"fallback_to_source" mapstructure:"fallback_to_source"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("transliteration.chunk_size must be >= 1, got %d", c.ChunkSize)
	}
	return nil
}
