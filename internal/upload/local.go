package upload

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cozytiny/internal/observability"
)

// LocalStore writes media beneath root. Files are served by the HTTP server's
// static mounts, so the URL of a key is "/" + key.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Root is the directory the static mounts serve from.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Backend() string {
	return BackendLocal
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) (_ string, err error) {
	_, span := observability.TraceStorageOperation(ctx, BackendLocal, "put")
	defer func() { observability.EndSpan(span, err) }()

	if err = ValidateKey(key); err != nil {
		return "", err
	}
	if err = writeBytesToFile(s.path(key), data); err != nil {
		return "", err
	}
	return "/" + key, nil
}

// Delete removes key. A missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) (err error) {
	_, span := observability.TraceStorageOperation(ctx, BackendLocal, "delete")
	defer func() { observability.EndSpan(span, err) }()

	if err = ValidateKey(key); err != nil {
		return err
	}
	if err = os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Walk visits every regular file in the media directories.
func (s *LocalStore) Walk(ctx context.Context, fn func(key string, modTime time.Time) error) error {
	for _, dir := range []string{DirThumbnails, DirContentImages} {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if err := fn(Key(dir, e.Name()), info.ModTime()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
