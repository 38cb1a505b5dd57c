// Package auth issues and verifies bearer tokens for registered users.
// Identity is always optional: a missing or invalid token downgrades the
// request to guest instead of rejecting it, so every recording endpoint
// works without an account.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/storage"
)

// DefaultTokenTTL matches the access token lifetime users expect from the
// web client.
const DefaultTokenTTL = time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// UserStore is the user persistence surface the service depends on.
type UserStore interface {
	CreateUser(username, email, hashedPassword string) (storage.User, error)
	GetUserByEmail(email string) (storage.User, error)
	GetUserByUsername(username string) (storage.User, error)
}

// Token is a signed bearer credential and its wire type.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Service struct {
	store    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(store UserStore, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{store: store, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Enabled reports whether tokens can be issued and verified at all. Without
// a signing secret every request is a guest.
func (s *Service) Enabled() bool {
	return len(s.secret) > 0
}

// Register creates a user and signs them in. Username and email must both
// be unused.
func (s *Service) Register(username, email, password string) (Token, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Token{}, ErrInvalidCredentials
	}

	if _, err := s.store.GetUserByUsername(username); err == nil {
		return Token{}, ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Token{}, err
	}
	if _, err := s.store.GetUserByEmail(email); err == nil {
		return Token{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Token{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Token{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(username, email, string(hashed))
	if err != nil {
		return Token{}, err
	}
	return s.issueToken(user)
}

// Login verifies an email/password pair and returns a fresh token.
func (s *Service) Login(email, password string) (Token, error) {
	user, err := s.store.GetUserByEmail(strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return Token{}, ErrInvalidCredentials
	}
	return s.issueToken(user)
}

func (s *Service) issueToken(user storage.User) (Token, error) {
	if !s.Enabled() {
		return Token{}, errors.New("token signing secret not configured")
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(tokenString string) (storage.User, error) {
	if !s.Enabled() || tokenString == "" {
		return storage.User{}, ErrNotAuthenticated
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return storage.User{}, ErrNotAuthenticated
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return storage.User{}, ErrNotAuthenticated
	}

	user, err := s.store.GetUserByEmail(claims.Subject)
	if err != nil {
		return storage.User{}, ErrNotAuthenticated
	}
	return user, nil
}

type contextKey struct{}

// UserFromContext returns the authenticated user, if any. A nil user means
// the request is a guest.
func UserFromContext(ctx context.Context) *storage.User {
	user, _ := ctx.Value(contextKey{}).(*storage.User)
	return user
}

// Middleware resolves the Authorization header into a request user. Missing
// or invalid tokens pass through as guests; they never fail the request.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.Authenticate(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
