// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"

	"cozytiny/internal/upload"
)

// MemoryStore is an in-memory upload.Store.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject

	// FailPutSuffix makes Put fail for keys ending in it.
	FailPutSuffix string
}

// StoredObject is one entry of a MemoryStore.
type StoredObject struct {
	Data        []byte
	ContentType string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]StoredObject)}
}

func (s *MemoryStore) Backend() string { return "memory" }

// Put stores data and returns the local-style URL "/" + key.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if err := upload.ValidateKey(key); err != nil {
		return "", err
	}
	if s.FailPutSuffix != "" && strings.HasSuffix(key, s.FailPutSuffix) {
		return "", errors.New("memory store: put failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = StoredObject{Data: append([]byte(nil), data...), ContentType: contentType}
	return "/" + key, nil
}

// Delete removes key if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns the object stored under key.
func (s *MemoryStore) Get(key string) (StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, G: 120, B: 40, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
