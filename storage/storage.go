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
)

var (
	// ErrNotExist is returned by Get for a missing key
	ErrNotExist = errors.New("object does not exist")
	// ErrInvalidKey is returned for keys that escape the store
	ErrInvalidKey = errors.New("invalid storage key")
)

// Blob is a flat key/value object store. Keys use forward slashes.
type Blob interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// Storage stores objects as files under a base directory
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
	}, nil
}

// CleanKey normalises a key and rejects absolute or parent-relative paths
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func (s *Storage) fullPath(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.config.BasePath, filepath.FromSlash(cleaned)), nil
}

// Put writes data to key, creating parent directories as needed
func (s *Storage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a sibling temp file so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Get reads the object at key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete removes the object at key. Deleting a missing key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether key is present
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	return fileExists(fullPath), nil
}

// GetFullPath returns the full filesystem path for a key
func (s *Storage) GetFullPath(key string) string {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return ""
	}
	return fullPath
}

// SaveContent stores an HTML document under snapshots/YYYY/MM/<slug>.html,
// appending -1, -2, ... when the key is taken. It returns the key used.
func SaveContent(ctx context.Context, b Blob, slug, content string, now time.Time) (string, error) {
	dir := fmt.Sprintf("snapshots/%04d/%02d", now.Year(), int(now.Month()))

	key := fmt.Sprintf("%s/%s.html", dir, slug)
	for counter := 1; ; counter++ {
		exists, err := b.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check snapshot key: %w", err)
		}
		if !exists {
			break
		}
		key = fmt.Sprintf("%s/%s-%d.html", dir, slug, counter)
	}

	if err := b.Put(ctx, key, []byte(content), "text/html; charset=utf-8"); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return key, nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
