package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"go.uber.org/zap"
)

// LocalImageStore implements port.ImageStore on the local filesystem.
// Keys are slash separated paths relative to baseDir.
type LocalImageStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalImageStore creates a new LocalImageStore
func NewLocalImageStore(baseDir string, logger *zap.Logger) port.ImageStore {
	return &LocalImageStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content under key. The file is written next to its target and
// renamed so readers never observe a partial image.
func (s *LocalImageStore) Save(ctx context.Context, key string, content []byte) error {
	fullPath := s.GetFullPath(key)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create image directory",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		s.logger.Error("Failed to write image",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move image into place: %w", err)
	}

	s.logger.Debug("Image saved",
		zap.String("key", key),
		zap.Int("size", len(content)))
	return nil
}

// Read returns the image stored under key. A missing key wraps os.ErrNotExist.
func (s *LocalImageStore) Read(ctx context.Context, key string) ([]byte, error) {
	fullPath := s.GetFullPath(key)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read image",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return content, nil
}

// Exists checks if an image exists under key
func (s *LocalImageStore) Exists(ctx context.Context, key string) bool {
	fullPath := s.GetFullPath(key)
	if s.validatePath(fullPath) != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// Delete removes the image under key. Deleting a missing key succeeds.
func (s *LocalImageStore) Delete(ctx context.Context, key string) error {
	fullPath := s.GetFullPath(key)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete image",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// GetFullPath converts a key to a filesystem path
func (s *LocalImageStore) GetFullPath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// validatePath checks that the path stays within baseDir
func (s *LocalImageStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}
