package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/maauso/videoprep/internal/fileutil"
)

// LocalStorage implements Storage on a directory tree. Keys are paths
// relative to the root. It backs the CLI and development setups without S3.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a new LocalStorage rooted at root.
// If root is empty, a "videoprep-storage" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "videoprep-storage")
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{root: root}, nil
}

// Root returns the storage root.
func (s *LocalStorage) Root() string {
	return s.root
}

// Path returns the file path backing key.
func (s *LocalStorage) Path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Download copies the file at key to dst.
func (s *LocalStorage) Download(ctx context.Context, key, dst string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	src, err := s.Path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	if err := fileutil.Copy(src, dst); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// Upload copies src to key. The content type is not recorded on disk.
func (s *LocalStorage) Upload(ctx context.Context, key, src, _ string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	dst, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := fileutil.Copy(src, dst); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
