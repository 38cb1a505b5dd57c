package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the gateway recorded audio is persisted through. Keys are
// opaque to callers; Store returns the location to record on the row.
type ObjectStore interface {
	IsConfigured() bool
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// StoreError is the single failure type surfaced by every object store
// implementation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("object store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LocalStore is the filesystem fallback used when no S3-compatible store is
// configured. Keys become paths under the archive root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	if strings.TrimSpace(root) == "" {
		root = filepath.Join("data", "archive")
	}
	// Locations returned by Store must stay resolvable when passed back to
	// Fetch/Delete, so the root is pinned to an absolute path up front.
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &LocalStore{root: root}
}

// IsConfigured reports false so the lifecycle manager knows audio locations
// are local paths rather than object keys.
func (l *LocalStore) IsConfigured() bool { return false }

func (l *LocalStore) Store(_ context.Context, key string, data []byte, _ string) (string, error) {
	dest, err := l.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &StoreError{Op: "store", Err: fmt.Errorf("create archive directory: %w", err)}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", &StoreError{Op: "store", Err: err}
	}
	return dest, nil
}

func (l *LocalStore) Fetch(_ context.Context, key string) ([]byte, error) {
	dest, err := l.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}
	return data, nil
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	dest, err := l.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// resolve maps a key (or a previously returned absolute location) onto the
// archive root, rejecting traversal outside it.
func (l *LocalStore) resolve(key string) (string, error) {
	if filepath.IsAbs(key) {
		rootAbs, err := filepath.Abs(l.root)
		if err != nil {
			return "", &StoreError{Op: "resolve", Err: err}
		}
		if !strings.HasPrefix(filepath.Clean(key), rootAbs+string(filepath.Separator)) && filepath.Clean(key) != rootAbs {
			return "", &StoreError{Op: "resolve", Err: fmt.Errorf("key %q escapes archive root", key)}
		}
		return filepath.Clean(key), nil
	}

	clean := filepath.Clean(strings.TrimPrefix(key, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", &StoreError{Op: "resolve", Err: fmt.Errorf("invalid key %q", key)}
	}
	return filepath.Join(l.root, clean), nil
}
