package subtitle

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySession is returned by Finish when no word was ever ingested.
	ErrEmptySession = errors.New("subtitle: session produced no words")
	// ErrSessionClosed is returned by Ingest after Finish has been called.
	ErrSessionClosed = errors.New("subtitle: session is closed")
	// ErrMalformedSRT is returned by Parse for text that is not SRT.
	ErrMalformedSRT = errors.New("subtitle: malformed srt")
)

// InvalidEventError reports the first word that made a batch unacceptable.
type InvalidEventError struct {
	// Position is the offset of the word within its batch.
	Position int
	Event    WordEvent
	Reason   string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("subtitle: invalid word at batch position %d (%q %.3f-%.3f): %s",
		e.Position, e.Event.Text, e.Event.Start, e.Event.End, e.Reason)
}

// IsInvalidEvent reports whether err wraps an *InvalidEventError.
func IsInvalidEvent(err error) bool {
	var target *InvalidEventError
	return errors.As(err, &target)
}
