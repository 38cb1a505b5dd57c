package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveStore archives audio in a Google Drive folder. Keys map to file names
// inside the folder, so a restarted process can still resolve older objects.
type DriveStore struct {
	service  *drive.Service
	folderID string

	mu      sync.Mutex
	fileIDs map[string]string
}

func NewDriveStore(ctx context.Context, credPath, folderID string) (*DriveStore, error) {
	if strings.TrimSpace(credPath) == "" || strings.TrimSpace(folderID) == "" {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("drive archive is not configured")}
	}

	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("read credentials: %w", err)}
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("parse credentials: %w", err)}
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("create drive service: %w", err)}
	}

	return &DriveStore{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

func (s *DriveStore) IsConfigured() bool { return true }

func (s *DriveStore) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	media := bytes.NewReader(data)

	fileID, err := s.lookupLocked(ctx, key)
	switch {
	case err == nil:
		_, err = s.service.Files.Update(fileID, &drive.File{}).Media(media, googleapi.ContentType(contentType)).Context(ctx).Do()
		if err != nil {
			return "", &StoreError{Op: "store", Err: err}
		}
		return key, nil
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	doc, err := s.service.Files.Create(&drive.File{
		Name:    key,
		Parents: []string{s.folderID},
	}).Media(media, googleapi.ContentType(contentType)).Context(ctx).Do()
	if err != nil {
		return "", &StoreError{Op: "store", Err: err}
	}

	s.fileIDs[key] = doc.Id
	return key, nil
}

func (s *DriveStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fileID, err := s.lookupLocked(ctx, key)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	resp, err := s.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}
	return data, nil
}

func (s *DriveStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileID, err := s.lookupLocked(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.service.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
			delete(s.fileIDs, key)
			return nil
		}
		return &StoreError{Op: "delete", Err: err}
	}
	delete(s.fileIDs, key)
	return nil
}

// lookupLocked resolves a key to a Drive file ID, falling back to a folder
// query when the ID was created by a previous process.
func (s *DriveStore) lookupLocked(ctx context.Context, key string) (string, error) {
	if fileID, ok := s.fileIDs[key]; ok {
		return fileID, nil
	}

	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeDriveQuery(key), escapeDriveQuery(s.folderID))
	list, err := s.service.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", &StoreError{Op: "lookup", Err: err}
	}
	if len(list.Files) == 0 {
		return "", &StoreError{Op: "lookup", Err: fmt.Errorf("object %q: %w", key, ErrNotFound)}
	}

	s.fileIDs[key] = list.Files[0].Id
	return list.Files[0].Id, nil
}

func escapeDriveQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
