package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squish/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Jobs.MaxConcurrent != 1 {
		t.Fatalf("unexpected default concurrency %d", cfg.Jobs.MaxConcurrent)
	}
	if cfg.Policy() != config.PolicyKeep {
		t.Fatalf("unexpected default policy %s", cfg.Policy())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for absent file")
	}
	if cfg.Hardware.Device != "/dev/dri/renderD128" {
		t.Fatalf("unexpected default device %q", cfg.Hardware.Device)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "squish.toml")
	content := `
[paths]
media_dir = "` + dir + `/media"
output_dir = "` + dir + `/out"

[jobs]
max_concurrent = 3
original_policy = "delete"

[hardware]
device = "/dev/dri/renderD129"

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved path %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Jobs.MaxConcurrent != 3 {
		t.Fatalf("unexpected concurrency %d", cfg.Jobs.MaxConcurrent)
	}
	if cfg.Policy() != config.PolicyDelete {
		t.Fatalf("unexpected policy %s", cfg.Policy())
	}
	if cfg.Hardware.Device != "/dev/dri/renderD129" {
		t.Fatalf("unexpected device %q", cfg.Hardware.Device)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero concurrency": "[jobs]\nmax_concurrent = 0\n",
		"bad policy":       "[jobs]\noriginal_policy = \"shred\"\n",
		"bad log format":   "[logging]\nformat = \"xml\"\n",
		"move w/o backup":  "[jobs]\noriginal_policy = \"move\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "squish.toml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, _, _, err := config.Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestMovePolicyRequiresBackupDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "squish.toml")
	content := `
[paths]
backup_dir = "` + dir + `/backup"

[jobs]
original_policy = "move"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy() != config.PolicyMove {
		t.Fatalf("unexpected policy %s", cfg.Policy())
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.BackupDir = filepath.Join(dir, "backup")
	cfg.Paths.Socket = filepath.Join(dir, "run", "squishd.sock")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, sub := range []string{"out", "logs", "backup", "run"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("expected directory %s: %v", sub, err)
		}
	}
}

func TestDBPathsLiveUnderLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/squish"
	if !strings.HasPrefix(cfg.QueueDBPath(), "/var/log/squish") {
		t.Fatalf("unexpected queue db path %s", cfg.QueueDBPath())
	}
	if !strings.HasPrefix(cfg.LibraryDBPath(), "/var/log/squish") {
		t.Fatalf("unexpected library db path %s", cfg.LibraryDBPath())
	}
}
