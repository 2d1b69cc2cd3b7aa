package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putAged(t *testing.T, store *LocalStore, key string, age time.Duration) {
	t.Helper()
	_, err := store.Put(context.Background(), key, []byte("x"), "image/png")
	require.NoError(t, err)
	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), filepath.FromSlash(key)), when, when))
}

func exists(store *LocalStore, key string) bool {
	_, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(key)))
	return err == nil
}

func TestSweeper_RemovesOnlyOldOrphans(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	putAged(t, store, "uploads/kept-thumb.png", 48*time.Hour)
	putAged(t, store, "uploads/kept-thumb.webp", 48*time.Hour)
	putAged(t, store, "postimage/inline.jpg", 48*time.Hour)
	putAged(t, store, "uploads/orphan.png", 48*time.Hour)
	putAged(t, store, "uploads/orphan.webp", 48*time.Hour)
	putAged(t, store, "postimage/fresh.png", time.Minute)

	refs := func(context.Context) ([]string, error) {
		return []string{"/uploads/kept-thumb.png", "https://cdn.example.com/postimage/inline.jpg?v=2", ""}, nil
	}
	sweeper := NewSweeper(store, refs, 24*time.Hour)

	removed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.True(t, exists(store, "uploads/kept-thumb.png"))
	assert.True(t, exists(store, "uploads/kept-thumb.webp"))
	assert.True(t, exists(store, "postimage/inline.jpg"))
	assert.True(t, exists(store, "postimage/fresh.png"))
	assert.False(t, exists(store, "uploads/orphan.png"))
	assert.False(t, exists(store, "uploads/orphan.webp"))
}

func TestSweeper_RefErrorDeletesNothing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	putAged(t, store, "uploads/orphan.png", 48*time.Hour)

	sweeper := NewSweeper(store, func(context.Context) ([]string, error) {
		return nil, errors.New("db down")
	}, time.Hour)

	removed, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
	assert.Zero(t, removed)
	assert.True(t, exists(store, "uploads/orphan.png"))
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper := NewSweeper(NewLocalStore(t.TempDir()), func(context.Context) ([]string, error) { return nil, nil }, time.Hour)
	assert.Error(t, sweeper.Start("not a schedule"))
	require.NoError(t, sweeper.Start("@every 1h"))
	<-sweeper.Stop().Done()
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "abc-photo", fileStem("/uploads/abc-photo.png"))
	assert.Equal(t, "abc-photo", fileStem("uploads/abc-photo.webp"))
	assert.Equal(t, "x", fileStem("https://cdn/x.jpg#frag"))
	assert.Equal(t, "", fileStem(""))
}
