// Package subtitle assembles recognized words into numbered SRT caption blocks.
//
// A Session consumes word batches in the order a recognizer produces them and
// assigns contiguous indices starting at 1. A batch with any invalid word is
// rejected as a whole and leaves the session untouched.
//
//	s := subtitle.NewSession()
//	if _, err := s.Ingest(words); err != nil { ... }
//	blocks, err := s.Finish()
//	srt := subtitle.Render(blocks)
//
// A Session is not safe for concurrent use.
package subtitle
