// Package session owns the lifecycle of recordings: chunk buffering, the
// finalize pipeline, accent-training attempts, and expiry of abandoned guest
// sessions.
package session

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/scoring"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/storage"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/transcribe"
)

const captureFileName = "capture.webm"

type Manager struct {
	store       Store
	objects     storage.ObjectStore
	transcoder  Transcoder
	transcriber transcribe.Transcriber
	workDir     string
	log         *zap.SugaredLogger

	registry *registry
}

func NewManager(store Store, objects storage.ObjectStore, transcoder Transcoder, transcriber transcribe.Transcriber, workDir string, log *zap.SugaredLogger) *Manager {
	if workDir == "" {
		workDir = filepath.Join("data", "work")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Manager{
		store:       store,
		objects:     objects,
		transcoder:  transcoder,
		transcriber: transcriber,
		workDir:     workDir,
		log:         log,
		registry:    newRegistry(),
	}
}

// Create allocates a session id, its working buffer directory, and the DB
// row. A session with no owner is a guest session.
func (m *Manager) Create(ctx context.Context, ownerID *int64) (string, bool, error) {
	id := uuid.NewString()
	isGuest := ownerID == nil

	dir := m.sessionDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create session buffer dir: %w", err)
	}

	sess := storage.Session{
		SessionID: id,
		UserID:    ownerID,
		IsGuest:   isGuest,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateSession(sess); err != nil {
		_ = os.RemoveAll(dir)
		return "", false, err
	}

	m.registry.get(id)
	m.log.Infow("session created", "session_id", id, "is_guest", isGuest)
	return id, isGuest, nil
}

// AppendChunk appends captured bytes to the session's working buffer.
// Appends to the same session serialize on the session's keyed lock;
// different sessions never contend.
func (m *Manager) AppendChunk(ctx context.Context, id string, chunk []byte) error {
	if len(chunk) == 0 {
		return validationErrf("chunk is empty")
	}

	sess, err := m.store.GetSession(id)
	if err != nil {
		return err
	}
	if sess.FinalTranscript != nil {
		return validationErrf("session %s is already finalized, not accepting chunks", id)
	}

	e := m.registry.get(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return validationErrf("session %s is %s, not accepting chunks", id, e.state)
	}

	f, err := os.OpenFile(filepath.Join(m.sessionDir(id), captureFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session buffer: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(chunk); err != nil {
		return fmt.Errorf("append session chunk: %w", err)
	}
	return nil
}

// Finalize drives the session through transcode, duration probe,
// transcription, filler counting, and then either guest purge or non-guest
// persistence. It runs the steps strictly in sequence and returns only when
// the session reached a terminal state or the pipeline failed fatally. On
// fatal failure the working buffer is preserved so finalize can be retried;
// on success or purge it is deleted as the last step.
func (m *Manager) Finalize(ctx context.Context, id string) (FinalizeResult, error) {
	sess, err := m.store.GetSession(id)
	if err != nil {
		return FinalizeResult{}, err
	}
	// Terminal state is read off the row, not the registry: persisted
	// sessions release their registry entry, and rows may predate the
	// process.
	if sess.FinalTranscript != nil {
		return FinalizeResult{}, ErrAlreadyFinalized
	}

	e := m.registry.get(id)
	if err := e.beginFinalize(); err != nil {
		return FinalizeResult{}, err
	}

	result, err := m.runFinalize(ctx, sess, e)
	if err != nil {
		e.setState(StateFailed)
		m.log.Warnw("finalize failed", "session_id", id, "error", err)
		return FinalizeResult{}, err
	}
	return result, nil
}

func (m *Manager) runFinalize(ctx context.Context, sess storage.Session, e *entry) (FinalizeResult, error) {
	id := sess.SessionID
	dir := m.sessionDir(id)
	capture := filepath.Join(dir, captureFileName)

	if info, err := os.Stat(capture); err != nil || info.Size() == 0 {
		return FinalizeResult{}, validationErrf("session %s has no recorded audio", id)
	}

	wavPath, err := m.transcoder.Transcode(ctx, capture, dir)
	if err != nil {
		return FinalizeResult{}, pipelineErr(StageTranscode, err)
	}

	var duration *int
	if seconds, err := m.transcoder.ProbeDuration(ctx, wavPath); err != nil {
		m.log.Warnw("duration probe failed", "session_id", id, "error", err)
	} else {
		duration = &seconds
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return FinalizeResult{}, pipelineErr(StageTranscode, fmt.Errorf("read transcoded audio: %w", err))
	}

	transcript, err := m.transcriber.Transcribe(ctx, audio, "audio/wav")
	if err != nil {
		return FinalizeResult{}, pipelineErr(StageTranscribe, err)
	}

	fillers := scoring.CountFillerWords(transcript.Text)

	if sess.IsGuest {
		// Purge is the last action: the guest still receives the transcript
		// even though nothing is retained.
		if err := m.store.DeleteSession(id); err != nil {
			return FinalizeResult{}, pipelineErr(StagePersist, err)
		}
		m.removeBuffer(id, dir)
		e.setState(StatePurged)
		m.registry.remove(id)
		m.log.Infow("guest session purged", "session_id", id)
		return FinalizeResult{Final: transcript.Text, FillerWordCount: fillers, AudioURL: nil}, nil
	}

	key := archiveKey(sess)
	var location string
	err = m.store.FinalizeSession(id, transcript.Text, duration, fillers, func() (string, error) {
		stored, storeErr := m.objects.Store(ctx, key, audio, "audio/wav")
		if storeErr != nil {
			return "", pipelineErr(StageStore, storeErr)
		}
		location = stored
		return stored, nil
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	// Durability is confirmed; only now may the working buffer go. The
	// registry entry goes with it: the finalized row itself guards against
	// further appends and finalizes, so keeping the entry would only leak.
	m.removeBuffer(id, dir)
	e.setState(StatePersisted)
	m.registry.remove(id)
	m.log.Infow("session persisted", "session_id", id, "audio_location", location)
	return FinalizeResult{Final: transcript.Text, FillerWordCount: fillers, AudioURL: &location}, nil
}

// Train runs one accent-training attempt: transcribe, score, then persist
// audio and row all-or-nothing.
func (m *Manager) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	accent, ok := scoring.ParseAccent(req.AccentTarget)
	if !ok {
		return TrainResult{}, validationErrf("accentTarget must be american or british")
	}
	if len(req.Audio) == 0 {
		return TrainResult{}, validationErrf("audio is empty")
	}
	if strings.TrimSpace(req.ExpectedText) == "" {
		return TrainResult{}, validationErrf("text is empty")
	}

	transcript, err := m.transcriber.Transcribe(ctx, req.Audio, req.ContentType)
	if err != nil {
		return TrainResult{}, pipelineErr(StageTranscribe, err)
	}

	feedback, score := scoring.Evaluate(req.ExpectedText, transcript.Words, accent)
	tips := scoring.BuildTip(feedback, accent)
	items := scoring.Items(feedback)

	attemptID := uuid.NewString()
	key := fmt.Sprintf("%s/%s%s", accent, attemptID, extensionFor(req.ContentType))

	location, err := m.objects.Store(ctx, key, req.Audio, contentTypeOrDefault(req.ContentType))
	if err != nil {
		return TrainResult{}, pipelineErr(StageStore, err)
	}

	att := storage.PracticeAttempt{
		AttemptID:    attemptID,
		UserID:       req.OwnerID,
		AccentTarget: string(accent),
		ExpectedText: req.ExpectedText,
		AudioPath:    location,
		Transcript:   transcript.Text,
		Feedback:     items,
		OverallScore: score,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.InsertAttempt(att); err != nil {
		// Compensate the already stored object so no orphan audio survives
		// a failed insert.
		if delErr := m.objects.Delete(ctx, location); delErr != nil {
			m.log.Warnw("orphaned attempt audio", "attempt_id", attemptID, "location", location, "error", delErr)
		}
		return TrainResult{}, pipelineErr(StagePersist, err)
	}

	m.log.Infow("attempt recorded", "attempt_id", attemptID, "accent", accent, "score", score)
	return TrainResult{
		AttemptID:  attemptID,
		Score:      score,
		Words:      items,
		Tips:       tips,
		Transcript: transcript.Text,
	}, nil
}

// CleanupExpired deletes guest sessions that were created before now-maxAge
// and never finalized, buffers first, rows second. It returns the number of
// sessions removed.
func (m *Manager) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	expired, err := m.store.ExpiredGuestSessions(cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sess := range expired {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		m.removeBuffer(sess.SessionID, m.sessionDir(sess.SessionID))
		if err := m.store.DeleteSession(sess.SessionID); err != nil {
			m.log.Warnw("expired session delete failed", "session_id", sess.SessionID, "error", err)
			continue
		}
		m.registry.remove(sess.SessionID)
		removed++
	}

	if removed > 0 {
		m.log.Infow("expired guest sessions removed", "count", removed)
	}
	return removed, nil
}

// SessionState reports the lifecycle state tracked for a session id.
func (m *Manager) SessionState(id string) State {
	return m.registry.lookup(id)
}

func (m *Manager) sessionDir(id string) string {
	return filepath.Join(m.workDir, id)
}

func (m *Manager) removeBuffer(id, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		m.log.Warnw("working buffer removal failed", "session_id", id, "error", err)
	}
}

// archiveKey places audio under the owner id, or "guests" for ownerless
// rows that still persist.
func archiveKey(sess storage.Session) string {
	owner := "guests"
	if sess.UserID != nil {
		owner = fmt.Sprintf("%d", *sess.UserID)
	}
	return fmt.Sprintf("%s/%s.wav", owner, sess.SessionID)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "", "application/octet-stream", "audio/webm":
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".webm"
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
