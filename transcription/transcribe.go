package transcription

import (
	"context"
	"fmt"

	"github.com/kbukum/captiongen/subtitle"
)

// Transcript is the outcome of a finished recognition run.
type Transcript struct {
	Blocks   []subtitle.Block `json:"blocks"`
	Batches  int              `json:"batches"`
	Words    int              `json:"words"`
	Provider string           `json:"provider"`
}

// SRT renders the transcript blocks.
func (t *Transcript) SRT() string { return subtitle.Render(t.Blocks) }

// Transcribe runs rec over req and assembles the words into blocks.
// A batch the session rejects aborts recognition with the
// *subtitle.InvalidEventError. Audio without words yields
// subtitle.ErrEmptySession.
func Transcribe(ctx context.Context, rec Recognizer, req Request) (*Transcript, error) {
	session := subtitle.NewSession()
	tr := &Transcript{Provider: rec.Name()}
	sawFinal := false

	err := rec.Recognize(ctx, req, func(words []subtitle.WordEvent, final bool) error {
		if sawFinal {
			return fmt.Errorf("transcription: %s delivered a batch after the final one", rec.Name())
		}
		if _, err := session.Ingest(words); err != nil {
			return fmt.Errorf("batch %d: %w", tr.Batches+1, err)
		}
		tr.Batches++
		tr.Words += len(words)
		sawFinal = final
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: %s: %w", rec.Name(), err)
	}
	if !sawFinal {
		return nil, fmt.Errorf("transcription: %s ended without a final batch", rec.Name())
	}

	blocks, err := session.Finish()
	if err != nil {
		return nil, err
	}
	tr.Blocks = blocks
	return tr, nil
}
