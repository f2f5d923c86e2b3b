// Package storage moves source videos and prepared exports between the
// worker's disk and the object store. It defines the Storage interface
// (port) and implementations for local disk and S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/maauso/videoprep/internal/metadata"
)

// Static errors for storage operations.
var (
	// ErrInvalidKey is returned for empty keys or keys escaping the storage root.
	ErrInvalidKey = errors.New("storage: invalid key")
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: object not found")
)

// Storage fetches inputs and publishes outputs by key.
type Storage interface {
	// Download writes the object at key to the local file dst.
	Download(ctx context.Context, key, dst string) error

	// Upload stores the local file src under key.
	Upload(ctx context.Context, key, src, contentType string) error
}

func init() {
	// Export types the platform mime tables may lack.
	_ = mime.AddExtensionType(".mp4", "video/mp4")
	_ = mime.AddExtensionType(metadata.Extension, "application/json")
}

// ContentType infers the content type of an export file from its extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// UploadDir uploads every regular file below dir under prefix, keeping
// the relative layout. It returns the uploaded keys in walk order.
func UploadDir(ctx context.Context, s Storage, dir, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		if err := s.Upload(ctx, key, p, ContentType(p)); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("upload %s: %w", dir, err)
	}
	return keys, nil
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
