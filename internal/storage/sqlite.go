// Package storage persists sessions, practice attempts, and users in SQLite
// and owns the object gateway that keeps recorded audio durable.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/scoring"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Session is a continuous recording and its lifecycle record. Nullable
// columns are pointers; they stay nil until finalize succeeds.
type Session struct {
	SessionID       string    `json:"session_id"`
	UserID          *int64    `json:"user_id,omitempty"`
	IsGuest         bool      `json:"is_guest"`
	CreatedAt       time.Time `json:"created_at"`
	FinalTranscript *string   `json:"final_transcript,omitempty"`
	AudioPath       *string   `json:"audio_path,omitempty"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	FillerWordCount *int      `json:"filler_word_count,omitempty"`
}

// PracticeAttempt is a single scored accent-training submission. Rows are
// immutable after insert except for deletion.
type PracticeAttempt struct {
	AttemptID    string                 `json:"attempt_id"`
	UserID       *int64                 `json:"user_id,omitempty"`
	AccentTarget string                 `json:"accent_target"`
	ExpectedText string                 `json:"expected_text"`
	AudioPath    string                 `json:"audio_path"`
	Transcript   string                 `json:"transcript_raw"`
	Feedback     []scoring.FeedbackItem `json:"feedback"`
	OverallScore float64                `json:"overall_score"`
	CreatedAt    time.Time              `json:"created_at"`
}

type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "accent-practice.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id INTEGER,
			is_guest INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			final_transcript TEXT,
			audio_path TEXT,
			duration_seconds INTEGER,
			filler_word_count INTEGER,
			FOREIGN KEY(user_id) REFERENCES users(id)
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS practice_attempts (
			attempt_id TEXT PRIMARY KEY,
			user_id INTEGER,
			accent_target TEXT NOT NULL,
			expected_text TEXT NOT NULL,
			audio_path TEXT NOT NULL,
			transcript_raw TEXT NOT NULL,
			feedback_json TEXT NOT NULL,
			overall_score REAL NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id)
		);
	`); err != nil {
		return fmt.Errorf("create practice_attempts table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_attempts_user ON practice_attempts(user_id, created_at)"); err != nil {
		return fmt.Errorf("create attempts index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateSession(sess Session) error {
	if strings.TrimSpace(sess.SessionID) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions(session_id, user_id, is_guest, created_at) VALUES(?, ?, ?, ?)`,
		sess.SessionID,
		sess.UserID,
		boolToInt(sess.IsGuest),
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT session_id, user_id, is_guest, created_at, final_transcript, audio_path, duration_seconds, filler_word_count
		 FROM sessions WHERE session_id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session %s: %w", id, err)
	}
	return sess, nil
}

func (s *SQLiteStore) DeleteSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExpiredGuestSessions returns guest sessions created before the cutoff that
// were never finalized. Non-guest and finalized rows are never candidates.
func (s *SQLiteStore) ExpiredGuestSessions(cutoff time.Time) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, user_id, is_guest, created_at, final_transcript, audio_path, duration_seconds, filler_word_count
		 FROM sessions
		 WHERE is_guest = 1 AND final_transcript IS NULL AND created_at < ?
		 ORDER BY created_at ASC`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired guest sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired session rows: %w", err)
	}
	return sessions, nil
}

// FinalizeSession writes the terminal fields of a non-guest session and the
// audio persistence as one logical transaction: persistAudio runs between
// the row update and the commit, and any error from it rolls the row back to
// its pre-finalize state.
func (s *SQLiteStore) FinalizeSession(id, transcript string, durationSeconds *int, fillerCount int, persistAudio func() (string, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin finalize tx: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE sessions SET final_transcript = ?, duration_seconds = ?, filler_word_count = ? WHERE session_id = ?`,
		transcript,
		durationSeconds,
		fillerCount,
		id,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update session %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("finalize rows affected: %w", err)
	}
	if rows == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	audioPath, err := persistAudio()
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.Exec(`UPDATE sessions SET audio_path = ? WHERE session_id = ?`, audioPath, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set session %s audio path: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize for session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) InsertAttempt(att PracticeAttempt) error {
	if strings.TrimSpace(att.AttemptID) == "" {
		return errors.New("attempt id is required")
	}

	feedback, err := json.Marshal(att.Feedback)
	if err != nil {
		return fmt.Errorf("encode feedback for attempt %s: %w", att.AttemptID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO practice_attempts(attempt_id, user_id, accent_target, expected_text, audio_path, transcript_raw, feedback_json, overall_score, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		att.AttemptID,
		att.UserID,
		att.AccentTarget,
		att.ExpectedText,
		att.AudioPath,
		att.Transcript,
		string(feedback),
		att.OverallScore,
		att.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", att.AttemptID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAttempt(id string) (PracticeAttempt, error) {
	row := s.db.QueryRow(
		`SELECT attempt_id, user_id, accent_target, expected_text, audio_path, transcript_raw, feedback_json, overall_score, created_at
		 FROM practice_attempts WHERE attempt_id = ?`,
		id,
	)

	att, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PracticeAttempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return PracticeAttempt{}, fmt.Errorf("query attempt %s: %w", id, err)
	}
	return att, nil
}

func (s *SQLiteStore) ListAttemptsByUser(userID int64) ([]PracticeAttempt, error) {
	rows, err := s.db.Query(
		`SELECT attempt_id, user_id, accent_target, expected_text, audio_path, transcript_raw, feedback_json, overall_score, created_at
		 FROM practice_attempts WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts for user %d: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	attempts := make([]PracticeAttempt, 0, 16)
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}
	return attempts, nil
}

func (s *SQLiteStore) DeleteAttempt(id string) error {
	res, err := s.db.Exec(`DELETE FROM practice_attempts WHERE attempt_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete attempt %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attempt rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateUser(username, email, hashedPassword string) (User, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO users(username, email, hashed_password, created_at) VALUES(?, ?, ?, ?)`,
		username,
		email,
		hashedPassword,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user last insert id: %w", err)
	}

	return User{ID: id, Username: username, Email: email, HashedPassword: hashedPassword, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (User, error) {
	return s.getUser(`SELECT id, username, email, hashed_password, created_at FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) GetUserByUsername(username string) (User, error) {
	return s.getUser(`SELECT id, username, email, hashed_password, created_at FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) getUser(query, arg string) (User, error) {
	row := s.db.QueryRow(query, arg)

	var u User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, fmt.Errorf("user %s: %w", arg, ErrNotFound)
		}
		return User{}, fmt.Errorf("query user %s: %w", arg, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return User{}, fmt.Errorf("parse user %s created_at: %w", arg, err)
	}
	u.CreatedAt = parsed
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var isGuest int
	var createdAt string
	if err := row.Scan(
		&sess.SessionID,
		&sess.UserID,
		&isGuest,
		&createdAt,
		&sess.FinalTranscript,
		&sess.AudioPath,
		&sess.DurationSeconds,
		&sess.FillerWordCount,
	); err != nil {
		return Session{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	sess.CreatedAt = parsed
	sess.IsGuest = isGuest != 0
	return sess, nil
}

func scanAttempt(row rowScanner) (PracticeAttempt, error) {
	var att PracticeAttempt
	var feedback string
	var createdAt string
	if err := row.Scan(
		&att.AttemptID,
		&att.UserID,
		&att.AccentTarget,
		&att.ExpectedText,
		&att.AudioPath,
		&att.Transcript,
		&feedback,
		&att.OverallScore,
		&createdAt,
	); err != nil {
		return PracticeAttempt{}, err
	}

	if err := json.Unmarshal([]byte(feedback), &att.Feedback); err != nil {
		return PracticeAttempt{}, fmt.Errorf("decode feedback: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return PracticeAttempt{}, fmt.Errorf("parse created_at: %w", err)
	}
	att.CreatedAt = parsed
	return att, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
