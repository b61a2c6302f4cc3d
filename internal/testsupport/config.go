package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"squish/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

const defaultPresetsJSON = `{
  "presets": {
    "default": {"codec": "h264", "scale": "720p", "container": ".mkv", "audio_codec": "aac", "hardware": "preferred", "allow_fallback": true},
    "software": {"codec": "h264", "scale": "720p", "container": ".mkv", "audio_codec": "aac", "hardware": "disabled", "allow_fallback": false}
  }
}`

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, writes a presets file, and applies any provided
// options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.Socket = filepath.Join(base, "squishd.sock")
	cfgVal.Paths.LockFile = filepath.Join(base, "squishd.lock")
	cfgVal.Paths.Presets = filepath.Join(base, "presets.json")
	cfgVal.Hardware.HotplugRef = false
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ProgressWriteInterval = 1

	if err := os.MkdirAll(cfgVal.Paths.MediaDir, 0o755); err != nil {
		t.Fatalf("mkdir media dir: %v", err)
	}
	if err := os.WriteFile(cfgVal.Paths.Presets, []byte(defaultPresetsJSON), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPresets overwrites the generated presets file with custom JSON.
func WithPresets(raw string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Paths.Presets, []byte(raw), 0o644); err != nil {
			b.t.Fatalf("write presets: %v", err)
		}
	}
}

// WithStubbedTools writes stub ffmpeg/ffprobe executables and points the
// config at them. The ffmpeg stub exits 0 and writes its last argument; the
// ffprobe stub reports a fixed one-minute h264 source.
func WithStubbedTools() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.FFmpegBin = StubFFmpeg(b.t, b.baseDir, `for a; do out="$a"; done
case "$*" in *testsrc*) exit 0;; esac
printf 'encoded' > "$out"
echo "progress=end"
exit 0`)
		b.cfg.Paths.FFprobeBin = StubFFprobe(b.t, b.baseDir, `{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":1280,"height":720}],"format":{"format_name":"matroska,webm","duration":"60","size":"1000"}}`)
	}
}

// StubFFmpeg writes a shell fake for ffmpeg running the provided body.
func StubFFmpeg(t testing.TB, dir, body string) string {
	t.Helper()
	return writeStub(t, dir, "ffmpeg", body)
}

// StubFFprobe writes a shell fake for ffprobe printing the given JSON.
func StubFFprobe(t testing.TB, dir, payload string) string {
	t.Helper()
	return writeStub(t, dir, "ffprobe", "cat <<'PROBE'\n"+payload+"\nPROBE")
}

func writeStub(t testing.TB, dir, name, body string) string {
	t.Helper()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
