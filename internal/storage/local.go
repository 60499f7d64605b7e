package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobRef locates a stored blob: Key is used for deletion, URL for clients.
type BlobRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

var (
	ErrInvalidContentType = errors.New("content type not allowed")
	ErrTooLarge           = errors.New("file exceeds maximum size")
	ErrInvalidKey         = errors.New("invalid storage key")
)

// LocalStorage handles blob storage on the local filesystem
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a new local storage instance. baseURL is the public
// prefix under which the files are served, e.g. "/files".
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Store writes data under folder/YYYY/MM with a random name.
func (s *LocalStorage) Store(ctx context.Context, data []byte, contentType, folder string) (BlobRef, error) {
	if err := ctx.Err(); err != nil {
		return BlobRef{}, err
	}
	ext, ok := validContentTypes[contentType]
	if !ok {
		return BlobRef{}, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	if int64(len(data)) > MaxFileSize() {
		return BlobRef{}, ErrTooLarge
	}

	key := path.Join(folder, time.Now().UTC().Format("2006/01"), generateID()+ext)
	fullPath, err := s.SafeFullPath(key)
	if err != nil {
		return BlobRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return BlobRef{}, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return BlobRef{}, fmt.Errorf("failed to write file: %w", err)
	}

	return BlobRef{Key: key, URL: s.baseURL + "/" + key}, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.SafeFullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if a blob exists
func (s *LocalStorage) Exists(key string) bool {
	fullPath, err := s.SafeFullPath(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// BasePath returns the directory blobs are written under, for static serving.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// SafeFullPath resolves key below the base path, rejecting traversal.
func (s *LocalStorage) SafeFullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.basePath, clean), nil
}

// generateID creates a unique identifier for filenames
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var validContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
}

// MaxFileSize returns the maximum allowed file size (10MB)
func MaxFileSize() int64 {
	return 10 * 1024 * 1024
}

// IsValidContentType checks if the content type is allowed
func IsValidContentType(contentType string) bool {
	_, ok := validContentTypes[contentType]
	return ok
}
