package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"squish/internal/config"
	"squish/internal/library"
	"squish/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenLibrary opens a library.Store for tests and registers cleanup.
func MustOpenLibrary(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg.LibraryDBPath())
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewMediaItem inserts a minimal media item backed by a real file under the
// config's media root.
func NewMediaItem(t testing.TB, cfg *config.Config, store *library.Store, id string) *library.MediaItem {
	t.Helper()

	path := filepath.Join(cfg.Paths.MediaDir, id+".mkv")
	WriteFile(t, path, 64)
	item := &library.MediaItem{
		ID:         id,
		Path:       path,
		Title:      id,
		Kind:       library.KindMovie,
		Container:  "matroska,webm",
		VideoCodec: "hevc",
		AudioCodec: "ac3",
		Width:      1920,
		Height:     1080,
		Duration:   60,
		Size:       64,
	}
	if err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return item
}
