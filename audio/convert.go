// Package audio converts uploads to recognizer-ready WAV and streams the PCM
// samples back out in fixed-size chunks.
package audio

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/process"
)

// Converter turns compressed audio into mono 16-bit PCM WAV with ffmpeg.
type Converter struct {
	cfg Config
	log *logger.Logger
}

// NewConverter creates a Converter.
func NewConverter(cfg Config, log *logger.Logger) *Converter {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Converter{cfg: cfg, log: log.WithComponent("audio")}
}

// Available reports whether the ffmpeg binary can be resolved.
func (c *Converter) Available() error {
	_, err := process.LookPath(c.cfg.FFmpegPath)
	return err
}

// ToWAV converts src into a WAV file at dst, overwriting dst.
func (c *Converter) ToWAV(ctx context.Context, src, dst string) error {
	res, err := process.Run(ctx, process.Command{
		Binary:  c.cfg.FFmpegPath,
		Args:    c.args(src, dst),
		Timeout: c.cfg.ConvertTimeout,
	})
	if err != nil {
		return fmt.Errorf("audio: convert %s: %w: %s", src, err, res.StderrTail(5))
	}
	c.log.WithContext(ctx).Debug("Converted audio", map[string]interface{}{
		"src":         src,
		"dst":         dst,
		"duration_ms": res.Duration.Milliseconds(),
	})
	return nil
}

func (c *Converter) args(src, dst string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-y", "-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst,
	}
}
