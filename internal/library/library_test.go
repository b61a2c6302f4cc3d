package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"squish/internal/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFakeFFprobe(t *testing.T, dir, duration string) string {
	t.Helper()
	path := filepath.Join(dir, "ffprobe")
	script := `#!/bin/sh
cat <<'PROBE'
{"streams":[
  {"index":0,"codec_name":"hevc","codec_type":"video","width":1920,"height":1080},
  {"index":1,"codec_name":"ac3","codec_type":"audio","channels":6}
],"format":{"format_name":"matroska,webm","duration":"` + duration + `","size":"4096","bit_rate":"5000000"}}
PROBE`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe fake: %v", err)
	}
	return path
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	item := &MediaItem{
		ID:          "id-1",
		Path:        "/media/movie.mkv",
		Title:       "movie",
		Kind:        KindMovie,
		Container:   "matroska,webm",
		VideoCodec:  "hevc",
		AudioCodec:  "ac3",
		Width:       1920,
		Height:      1080,
		Duration:    5400,
		BitRate:     5000000,
		Size:        4096,
		Fingerprint: "abc123",
	}
	if err := store.Put(ctx, item); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Title != "movie" || got.VideoCodec != "hevc" || got.Duration != 5400 {
		t.Fatalf("unexpected item %+v", got)
	}
	if got.ScannedAt.IsZero() {
		t.Fatal("expected scanned_at to be stamped")
	}

	byPrint, err := store.FindByFingerprint(ctx, "abc123")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if byPrint == nil || byPrint.ID != "id-1" {
		t.Fatalf("unexpected fingerprint match %+v", byPrint)
	}

	missing, err := store.GetByID(ctx, "ghost")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown id")
	}

	removed, err := store.Remove(ctx, "id-1")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
}

func TestScannerIngestsVideoFiles(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	ffprobeBin := writeFakeFFprobe(t, dir, "5400")

	root := filepath.Join(dir, "media")
	if err := os.MkdirAll(filepath.Join(root, "Show S01E02"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := []string{
		filepath.Join(root, "Some.Movie.2021.mkv"),
		filepath.Join(root, "Show S01E02", "Show.S01E02.mkv"),
		filepath.Join(root, "notes.txt"),
	}
	for _, path := range files {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	scanner := NewScanner(store, ffprobeBin, logging.NewNop())
	added, err := scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 items added, got %d", added)
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	byTitle := map[string]*MediaItem{}
	for _, item := range items {
		byTitle[item.Title] = item
	}
	movie, ok := byTitle["Some Movie 2021"]
	if !ok {
		t.Fatalf("missing movie item; have %v", byTitle)
	}
	if movie.Kind != KindMovie {
		t.Fatalf("expected movie kind, got %s", movie.Kind)
	}
	if movie.VideoCodec != "hevc" || movie.AudioCodec != "ac3" {
		t.Fatalf("unexpected codecs %+v", movie)
	}
	episode, ok := byTitle["Show S01E02"]
	if !ok {
		t.Fatalf("missing episode item; have %v", byTitle)
	}
	if episode.Kind != KindEpisode {
		t.Fatalf("expected episode kind, got %s", episode.Kind)
	}

	// Re-scanning must not create duplicates.
	added, err = scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 items on rescan, got %d", added)
	}
}

func TestScannerDetectsRenames(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	ffprobeBin := writeFakeFFprobe(t, dir, "100")

	root := filepath.Join(dir, "media")
	oldPath := filepath.Join(root, "original.mkv")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(oldPath, []byte("identical content"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	scanner := NewScanner(store, ffprobeBin, logging.NewNop())
	item, err := scanner.Ingest(context.Background(), oldPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	newPath := filepath.Join(root, "renamed.mkv")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}

	renamed, err := scanner.Ingest(context.Background(), newPath)
	if err != nil {
		t.Fatalf("ingest renamed: %v", err)
	}
	if renamed.ID != item.ID {
		t.Fatalf("rename created a new item: %s vs %s", renamed.ID, item.ID)
	}
	stored, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Path != newPath {
		t.Fatalf("expected updated path %s, got %s", newPath, stored.Path)
	}
}

func TestFingerprintStableAndContentSensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("some video bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	first, size, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if size != int64(len("some video bytes")) {
		t.Fatalf("unexpected size %d", size)
	}
	second, _, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if first != second {
		t.Fatal("fingerprint must be deterministic")
	}

	other := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(other, []byte("different bytes here"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	third, _, err := Fingerprint(other)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if third == first {
		t.Fatal("different content must not share a fingerprint")
	}
}

func TestParseKind(t *testing.T) {
	if ParseKind("EPISODE") != KindEpisode {
		t.Fatal("expected episode")
	}
	if ParseKind("movie") != KindMovie || ParseKind("junk") != KindMovie {
		t.Fatal("expected movie fallback")
	}
}
