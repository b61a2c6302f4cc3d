package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file of the requested size. The pattern is seeded from
// the file name so two fixture files never share a fingerprint by accident.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	seed := []byte(filepath.Base(path))
	if len(seed) == 0 {
		seed = []byte{0x42}
	}
	content := bytes.Repeat(seed, int(size/int64(len(seed)))+1)[:size]

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
