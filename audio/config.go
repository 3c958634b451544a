package audio

import (
	"fmt"
	"time"
)

// Defaults for recognizer input.
const (
	DefaultSampleRate  = 16000
	DefaultChunkFrames = 4000
)

// Config configures conversion and streaming of audio.
type Config struct {
	// FFmpegPath is the ffmpeg binary, resolved via PATH when relative.
	FFmpegPath     string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	SampleRate     int           `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=8000,lte=48000"`
	ChunkFrames    int           `yaml:"chunk_frames" mapstructure:"chunk_frames" validate:"gt=0"`
	ConvertTimeout time.Duration `yaml:"convert_timeout" mapstructure:"convert_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ChunkFrames == 0 {
		c.ChunkFrames = DefaultChunkFrames
	}
	if c.ConvertTimeout == 0 {
		c.ConvertTimeout = 5 * time.Minute
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ConvertTimeout < 0 {
		return fmt.Errorf("audio.convert_timeout must not be negative")
	}
	return nil
}

// SpeechFormat is the PCM layout the recognizers consume.
func (c *Config) SpeechFormat() Format {
	return Format{SampleRate: c.SampleRate, Channels: 1, BitDepth: 16}
}
