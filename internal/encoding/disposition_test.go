package encoding

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"squish/internal/config"
	"squish/internal/library"
	"squish/internal/logging"
)

func newTestDisposer(t *testing.T, policy string, backupDir string) *Disposer {
	t.Helper()
	cfg := config.Default()
	cfg.Jobs.OriginalPolicy = policy
	cfg.Paths.BackupDir = backupDir
	return NewDisposer(&cfg, logging.NewNop())
}

func seedOriginal(t *testing.T) *library.MediaItem {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(path, []byte("original bytes"), 0o644); err != nil {
		t.Fatalf("write original: %v", err)
	}
	return &library.MediaItem{ID: "m", Path: path}
}

func TestDisposeKeepLeavesOriginal(t *testing.T) {
	media := seedOriginal(t)
	disposer := newTestDisposer(t, "keep", "")

	action, err := disposer.Apply(media)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if action != config.PolicyKeep {
		t.Fatalf("expected keep, got %s", action)
	}
	if _, err := os.Stat(media.Path); err != nil {
		t.Fatal("original must remain under keep policy")
	}
}

func TestDisposeDeleteRemovesOriginal(t *testing.T) {
	media := seedOriginal(t)
	disposer := newTestDisposer(t, "delete", "")

	action, err := disposer.Apply(media)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if action != config.PolicyDelete {
		t.Fatalf("expected delete, got %s", action)
	}
	if _, err := os.Stat(media.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("original must be removed under delete policy")
	}
}

func TestDisposeMoveRelocatesOriginal(t *testing.T) {
	media := seedOriginal(t)
	backupDir := t.TempDir()
	disposer := newTestDisposer(t, "move", backupDir)

	action, err := disposer.Apply(media)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if action != config.PolicyMove {
		t.Fatalf("expected move, got %s", action)
	}
	if _, err := os.Stat(media.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("original must leave its source location")
	}
	moved, err := os.ReadFile(filepath.Join(backupDir, "movie.mkv"))
	if err != nil {
		t.Fatalf("expected original in backup dir: %v", err)
	}
	if string(moved) != "original bytes" {
		t.Fatal("moved file content mismatch")
	}
}

func TestDisposeUnknownPolicyDefaultsToKeep(t *testing.T) {
	media := seedOriginal(t)
	disposer := newTestDisposer(t, "shred", "")

	action, err := disposer.Apply(media)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if action != config.PolicyKeep {
		t.Fatalf("expected keep fallback, got %s", action)
	}
	if _, err := os.Stat(media.Path); err != nil {
		t.Fatal("original must remain when policy is unrecognized")
	}
}
