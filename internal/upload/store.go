// Package upload stores post media (thumbnails and inline content images)
// on local disk or in an S3 bucket.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"cozytiny/internal/config"
)

// Directories media is stored under. They double as public URL prefixes.
const (
	DirThumbnails    = "uploads"
	DirContentImages = "postimage"
)

// Backend names accepted by UPLOAD_BACKEND.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// ErrInvalidKey is returned for keys outside the known directories or keys
// that try to climb out of them.
var ErrInvalidKey = errors.New("invalid upload key")

// Store persists media objects addressed by key ("uploads/<name>" or
// "postimage/<name>") and reports the public URL each one is served at.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Backend() string
}

// Lister is implemented by stores whose objects can be enumerated. The
// sweeper only runs against a Lister.
type Lister interface {
	Walk(ctx context.Context, fn func(key string, modTime time.Time) error) error
}

// Key joins a directory and file name into a store key.
func Key(dir, name string) string {
	return dir + "/" + name
}

// ValidateKey rejects empty names, traversal and unknown directories.
func ValidateKey(key string) error {
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	dir, name := path.Split(key)
	dir = strings.TrimSuffix(dir, "/")
	if name == "" || (dir != DirThumbnails && dir != DirContentImages) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open builds the store selected by UPLOAD_BACKEND.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.UploadBackend {
	case BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PublicURL: cfg.S3PublicURL,
		})
	case BackendLocal, "":
		return NewLocalStore(cfg.UploadDir), nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}
