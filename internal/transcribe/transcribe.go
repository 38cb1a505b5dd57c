package transcribe

import (
	"context"
	"fmt"
)

// Word is a single recognized word with the provider's confidence in [0, 1].
type Word struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
}

// Result is a completed transcription: the full punctuated text plus the
// per-word confidence stream used by the scoring engine.
type Result struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// Transcriber is a pluggable speech-to-text backend.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (Result, error)
}

// ErrorKind classifies transcription failures so callers can match on the
// failure mode without knowing which backend produced it.
type ErrorKind string

const (
	KindUpstream ErrorKind = "upstream"
	KindTimeout  ErrorKind = "timeout"
)

// Error is the single error type surfaced by every backend.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func upstreamErr(format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Err: fmt.Errorf(format, args...)}
}
