// Package transliterate rewrites subtitle text from Devanagari into
// Latin-script Hinglish with a language model, chunk by chunk, keeping block
// numbering and timecodes from the source.
package transliterate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kbukum/captiongen/llm"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/subtitle"
)

// ErrMismatch is returned when a reply cannot be matched to its source
// blocks one to one.
var ErrMismatch = errors.New("transliterate: reply does not match source blocks")

// Service rewrites subtitle blocks.
type Service struct {
	cfg   Config
	model llm.Completer
	log   *logger.Logger
}

// New creates a Service. model may be nil when cfg.Enabled is false.
func New(cfg Config, model llm.Completer, log *logger.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Enabled && model == nil {
		return nil, errors.New("transliterate: enabled without a language model")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{cfg: cfg, model: model, log: log.WithComponent("transliterate")}, nil
}

// Enabled reports whether Rewrite calls the model.
func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Rewrite returns blocks with transliterated text. Indices and timecodes
// always come from the input. A disabled service returns blocks unchanged.
func (s *Service) Rewrite(ctx context.Context, blocks []subtitle.Block) ([]subtitle.Block, error) {
	if !s.cfg.Enabled || len(blocks) == 0 {
		return blocks, nil
	}

	chunks := subtitle.Chunk(blocks, s.cfg.ChunkSize)
	out := make([]subtitle.Block, 0, len(blocks))
	fallbacks := 0
	for i, chunk := range chunks {
		rewritten, err := s.rewriteChunk(ctx, chunk)
		switch {
		case err == nil:
			out = append(out, rewritten...)
		case errors.Is(err, ErrMismatch) && s.cfg.FallbackToSource:
			fallbacks++
			s.log.WithContext(ctx).Warn("Keeping source text for chunk", map[string]interface{}{
				"chunk": i + 1,
				"error": err.Error(),
			})
			out = append(out, chunk...)
		default:
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	s.log.WithContext(ctx).Debug("Subtitles transliterated", map[string]interface{}{
		"blocks":    len(blocks),
		"chunks":    len(chunks),
		"fallbacks": fallbacks,
	})
	return out, nil
}

func (s *Service) rewriteChunk(ctx context.Context, chunk []subtitle.Block) ([]subtitle.Block, error) {
	reply, err := llm.Complete(ctx, s.model, systemPrompt, userPrompt(chunk))
	if errors.Is(err, llm.ErrEmptyCompletion) {
		return nil, fmt.Errorf("%w: empty reply", ErrMismatch)
	}
	if err != nil {
		return nil, err
	}
	parsed, err := subtitle.Parse(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	return merge(chunk, parsed)
}

// merge takes text from parsed and everything else from source.
func merge(source, parsed []subtitle.Block) ([]subtitle.Block, error) {
	if len(parsed) != len(source) {
		return nil, fmt.Errorf("%w: got %d blocks, want %d", ErrMismatch, len(parsed), len(source))
	}
	out := make([]subtitle.Block, len(source))
	for i, src := range source {
		text := strings.TrimSpace(parsed[i].Text)
		if text == "" {
			return nil, fmt.Errorf("%w: block %d has no text", ErrMismatch, src.Index)
		}
		out[i] = src
		out[i].Text = text
	}
	return out, nil
}
