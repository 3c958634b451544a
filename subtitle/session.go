package subtitle

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// WordEvent is one recognized word with its timing in seconds.
type WordEvent struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Block is one numbered caption entry.
type Block struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

// Range returns the block's "START --> END" line.
func (b Block) Range() string {
	return b.Start + RangeSeparator + b.End
}

// State is the lifecycle position of a Session.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Session accumulates blocks for one transcription run.
// The zero value is in StateNotStarted and begins on first use.
type Session struct {
	state  State
	next   int
	blocks []Block
	upper  cases.Caser
}

// NewSession returns an active session whose first block will be numbered 1.
func NewSession() *Session {
	s := &Session{}
	s.begin()
	return s
}

func (s *Session) begin() {
	if s.state != StateNotStarted {
		return
	}
	s.state = StateActive
	s.next = 1
	s.blocks = nil
	s.upper = cases.Upper(language.Und)
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State { return s.state }

// Len returns the number of blocks accumulated so far.
func (s *Session) Len() int { return len(s.blocks) }

// Ingest appends one block per word, in order, and returns the new blocks.
// If any word is invalid the whole batch is rejected with *InvalidEventError
// and the session is unchanged. An empty batch is accepted and appends nothing.
func (s *Session) Ingest(words []WordEvent) ([]Block, error) {
	if s.state == StateFinished {
		return nil, ErrSessionClosed
	}
	s.begin()

	for i, w := range words {
		if reason := validate(w); reason != "" {
			return nil, &InvalidEventError{Position: i, Event: w, Reason: reason}
		}
	}

	added := make([]Block, 0, len(words))
	for _, w := range words {
		added = append(added, Block{
			Index: s.next + len(added),
			Start: FormatTimestamp(w.Start),
			End:   FormatTimestamp(w.End),
			Text:  s.display(w.Text),
		})
	}
	s.blocks = append(s.blocks, added...)
	s.next += len(added)

	out := make([]Block, len(added))
	copy(out, added)
	return out, nil
}

// Finish closes the session and returns every accumulated block.
// It may be called repeatedly and returns the same sequence each time.
// A session that never received a word fails with ErrEmptySession; it is
// still closed afterwards.
func (s *Session) Finish() ([]Block, error) {
	s.begin()
	s.state = StateFinished
	if len(s.blocks) == 0 {
		return nil, ErrEmptySession
	}
	out := make([]Block, len(s.blocks))
	copy(out, s.blocks)
	return out, nil
}

// SRT renders the accumulated blocks without closing the session.
func (s *Session) SRT() string {
	return Render(s.blocks)
}

func (s *Session) display(text string) string {
	return s.upper.String(norm.NFC.String(strings.TrimSpace(text)))
}

func validate(w WordEvent) string {
	switch {
	case strings.TrimSpace(w.Text) == "":
		return "empty text"
	case math.IsNaN(w.Start) || math.IsNaN(w.End) || math.IsInf(w.Start, 0) || math.IsInf(w.End, 0):
		return "non-finite time"
	case w.Start < 0 || w.End < 0:
		return "negative time"
	case w.End < w.Start:
		return "end before start"
	}
	return ""
}
