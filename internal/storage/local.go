package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// LocalStore Implementation
// =============================================================================

// LocalStore implements ContentStore on the local filesystem. Files live in
// per-category directories under a single upload root and are served by the
// application's static file layer.
//
// Security: path traversal prevention is enforced in resolvePath().
type LocalStore struct {
	basePath string // Absolute upload root
	logger   *slog.Logger
}

// NewLocalStore creates a LocalStore, creating the upload root if needed.
func NewLocalStore(cfg LocalConfig, logger *slog.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("initialized local content store", "base_path", absPath)

	return &LocalStore{
		basePath: absPath,
		logger:   logger,
	}, nil
}

// =============================================================================
// Interface Implementation
// =============================================================================

// EnsureRoot idempotently creates the category directory.
func (s *LocalStore) EnsureRoot(ctx context.Context, category string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	dir, err := s.resolvePath(category, "")
	if err != nil {
		return &StorageError{Op: "EnsureRoot", Key: category, Err: err}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Op: "EnsureRoot", Key: category, Err: err}
	}
	return nil
}

// Write stores the encoded bytes and returns the size reported by the
// filesystem for the written file.
func (s *LocalStore) Write(ctx context.Context, category, filename string, data []byte) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	path, err := s.resolvePath(category, filename)
	if err != nil {
		return 0, &StorageError{Op: "Write", Key: DisplayPath(category, filename), Err: err}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, &StorageError{Op: "Write", Key: DisplayPath(category, filename), Err: err}
	}

	// Measure from disk, not the buffer: the authoritative size is whatever
	// actually landed in the store.
	stat, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return 0, &StorageError{Op: "Write", Key: DisplayPath(category, filename), Err: err}
	}

	s.logger.Debug("stored file", "path", path, "size", stat.Size())

	return stat.Size(), nil
}

// Delete removes the file. A missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, category, filename string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := s.resolvePath(category, filename)
	if err != nil {
		return &StorageError{Op: "Delete", Key: DisplayPath(category, filename), Err: err}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "Delete", Key: DisplayPath(category, filename), Err: err}
	}

	s.logger.Debug("deleted file", "path", path)

	return nil
}

// Exists reports whether the file is present.
func (s *LocalStore) Exists(ctx context.Context, category, filename string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	path, err := s.resolvePath(category, filename)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: DisplayPath(category, filename), Err: err}
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: DisplayPath(category, filename), Err: err}
	}
	return true, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// resolvePath converts a (category, filename) pair to an absolute path.
//
// Security: prevents path traversal by rejecting ".." components, rejecting
// filenames with separators, and verifying the cleaned result stays under
// the base directory.
func (s *LocalStore) resolvePath(category, filename string) (string, error) {
	if category == "" {
		return "", ErrInvalidKey
	}
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return "", ErrInvalidKey
	}

	key := category
	if filename != "" {
		key = filepath.Join(category, filename)
	}
	cleanKey := filepath.Clean(key)
	if strings.Contains(cleanKey, "..") || filepath.IsAbs(cleanKey) {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)

	// Defense in depth: the resolved path must remain under the base.
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return absPath, nil
}
