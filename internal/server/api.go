package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/auth"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/session"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/storage"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/transcribe"
)

// maxUploadBytes bounds chunk and training uploads.
const maxUploadBytes = 32 << 20

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, isGuest, err := s.deps.Sessions.Create(r.Context(), ownerID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"is_guest":   isGuest,
	})
}

func (s *Server) handleAppendChunk(w http.ResponseWriter, r *http.Request) {
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "chunk too large")
		return
	}

	if err := s.deps.Sessions.AppendChunk(r.Context(), chi.URLParam(r, "id"), chunk); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Sessions.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer func() { _ = file.Close() }()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read audio upload")
		return
	}

	owner := ownerID(r)
	if owner == nil {
		// Unauthenticated clients may still attribute an attempt
		// explicitly.
		owner = coerceUserID(r.FormValue("userId"))
	}

	result, err := s.deps.Sessions.Train(r.Context(), session.TrainRequest{
		OwnerID:      owner,
		AccentTarget: r.FormValue("accentTarget"),
		ExpectedText: r.FormValue("text"),
		Audio:        audio,
		ContentType:  header.Header.Get("Content-Type"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	att, err := s.deps.Attempts.GetAttempt(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	attempts, err := s.deps.Attempts.ListAttemptsByUser(user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []storage.PracticeAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (s *Server) handleDeleteAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	att, err := s.deps.Attempts.GetAttempt(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if att.UserID != nil {
		user := auth.UserFromContext(r.Context())
		if user == nil || user.ID != *att.UserID {
			writeJSONError(w, http.StatusForbidden, "attempt belongs to another user")
			return
		}
	}

	if err := s.deps.Attempts.DeleteAttempt(id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Objects.Delete(r.Context(), att.AudioPath); err != nil {
		s.deps.Log.Warnw("attempt audio delete failed", "attempt_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttemptAudio(w http.ResponseWriter, r *http.Request) {
	att, err := s.deps.Attempts.GetAttempt(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	audio, err := s.deps.Objects.Fetch(r.Context(), att.AudioPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", contentTypeForAudio(att.AudioPath))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil || !s.deps.Auth.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not configured")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.deps.Auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil || !s.deps.Auth.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.deps.Auth.Login(req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"username": user.Username,
		"email":    user.Email,
	})
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coach == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "coach not configured")
		return
	}

	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	topics, err := s.deps.Coach.GenerateTopics(r.Context(), req.Transcript)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "topic generation failed")
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coach == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "coach not configured")
		return
	}

	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	analysis, err := s.deps.Coach.AnalyzeSpeech(r.Context(), req.Transcript)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "speech analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var vErr *session.ValidationError
	var tErr *transcribe.Error
	var pErr *session.PipelineError

	switch {
	case errors.As(err, &vErr):
		writeJSONError(w, http.StatusBadRequest, vErr.Msg)
	case errors.Is(err, storage.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, session.ErrAlreadyFinalized),
		errors.Is(err, session.ErrFinalizeInProgress):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotAuthenticated):
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, auth.ErrEmailTaken):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &tErr) && tErr.Kind == transcribe.KindTimeout:
		writeJSONError(w, http.StatusGatewayTimeout, "transcription timed out")
	case errors.As(err, &pErr):
		s.deps.Log.Warnw("pipeline failure", "stage", pErr.Stage, "error", pErr.Err)
		writeJSONError(w, http.StatusBadGateway, pErr.Stage+" failed")
	default:
		s.deps.Log.Errorw("unhandled request error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// ownerID resolves the request's user to a session owner. Guests have none.
func ownerID(r *http.Request) *int64 {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

func coerceUserID(value string) *int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
