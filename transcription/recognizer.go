package transcription

import (
	"context"

	"github.com/kbukum/captiongen/audio"
	"github.com/kbukum/captiongen/provider"
	"github.com/kbukum/captiongen/subtitle"
)

// Request describes one recognition run.
type Request struct {
	// AudioPath is a WAV file already in Format.
	AudioPath string `json:"audio_path"`
	// Language is a hint for backends that accept one (e.g. "hi").
	Language string       `json:"language,omitempty"`
	Format   audio.Format `json:"format"`
	// ChunkFrames is the streaming chunk size for backends that stream.
	ChunkFrames int `json:"chunk_frames,omitempty"`
}

// BatchFunc receives recognized words in order. final is true exactly once,
// on the last call; the final batch may be empty.
type BatchFunc func(words []subtitle.WordEvent, final bool) error

// Recognizer is the interface speech-to-text backends implement.
type Recognizer interface {
	provider.Provider

	// Recognize streams word timings for req to fn. An error from fn aborts
	// recognition and is returned unchanged.
	Recognize(ctx context.Context, req Request, fn BatchFunc) error
}
