// Package server exposes the recording, training, auth, and coaching
// operations over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/auth"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/session"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/storage"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/streaming"
)

// SessionService is the manager surface the handlers call.
type SessionService interface {
	Create(ctx context.Context, ownerID *int64) (string, bool, error)
	AppendChunk(ctx context.Context, id string, chunk []byte) error
	Finalize(ctx context.Context, id string) (session.FinalizeResult, error)
	Train(ctx context.Context, req session.TrainRequest) (session.TrainResult, error)
}

// AttemptStore reads and deletes stored practice attempts.
type AttemptStore interface {
	GetAttempt(id string) (storage.PracticeAttempt, error)
	ListAttemptsByUser(userID int64) ([]storage.PracticeAttempt, error)
	DeleteAttempt(id string) error
}

// AuthService issues credentials and resolves request identity.
type AuthService interface {
	Enabled() bool
	Register(username, email, password string) (auth.Token, error)
	Login(email, password string) (auth.Token, error)
	Middleware(next http.Handler) http.Handler
}

// Coach produces conversation topics and speech feedback.
type Coach interface {
	GenerateTopics(ctx context.Context, transcript string) ([]string, error)
	AnalyzeSpeech(ctx context.Context, transcript string) (string, error)
}

type Deps struct {
	Sessions SessionService
	Attempts AttemptStore
	Objects  storage.ObjectStore
	Auth     AuthService
	Coach    Coach
	Stream   *streaming.Proxy
	Log      *zap.SugaredLogger

	AllowedOrigins []string
	RateLimit      int
}

type Server struct {
	deps   Deps
	router chi.Router
}

func New(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	if deps.RateLimit <= 0 {
		deps.RateLimit = 120
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	s := &Server{deps: deps}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(httprate.LimitByIP(s.deps.RateLimit, time.Minute))
	if s.deps.Auth != nil && s.deps.Auth.Enabled() {
		r.Use(s.deps.Auth.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/chunks", s.handleAppendChunk)
		r.Post("/sessions/{id}/finalize", s.handleFinalize)

		r.Post("/accent/train", s.handleTrain)
		r.Get("/attempts", s.handleListAttempts)
		r.Get("/attempts/{id}", s.handleGetAttempt)
		r.Get("/attempts/{id}/audio", s.handleAttemptAudio)
		r.Delete("/attempts/{id}", s.handleDeleteAttempt)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/me", s.handleMe)

		r.Post("/coach/topics", s.handleTopics)
		r.Post("/coach/analysis", s.handleAnalysis)
	})

	r.Get("/ws/stream", s.handleStream)

	return r
}

// Serve blocks until the context is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.deps.Log.Infow("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
