package session

import (
	"context"
	"time"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/scoring"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/storage"
)

// Store is the database surface the manager depends on.
type Store interface {
	CreateSession(sess storage.Session) error
	GetSession(id string) (storage.Session, error)
	DeleteSession(id string) error
	ExpiredGuestSessions(cutoff time.Time) ([]storage.Session, error)
	FinalizeSession(id, transcript string, durationSeconds *int, fillerCount int, persistAudio func() (string, error)) error
	InsertAttempt(att storage.PracticeAttempt) error
}

// Transcoder normalizes captured audio and probes duration.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outDir string) (string, error)
	ProbeDuration(ctx context.Context, path string) (int, error)
}

// FinalizeResult is the terminal payload of a finalize call. AudioURL is nil
// for guests, whose audio is never retained.
type FinalizeResult struct {
	Final           string  `json:"final"`
	FillerWordCount int     `json:"filler_word_count"`
	AudioURL        *string `json:"audio_url"`
}

// TrainRequest is one accent-training submission.
type TrainRequest struct {
	OwnerID      *int64
	AccentTarget string
	ExpectedText string
	Audio        []byte
	ContentType  string
}

// TrainResult is the scored outcome of a training attempt. Words carries the
// outward feedback shape; spoken words and confidences never leave scoring.
type TrainResult struct {
	AttemptID  string                 `json:"attemptId"`
	Score      float64                `json:"score"`
	Words      []scoring.FeedbackItem `json:"words"`
	Tips       string                 `json:"tips"`
	Transcript string                 `json:"transcript"`
}
