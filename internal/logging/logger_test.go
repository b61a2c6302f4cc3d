package logging_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squish/internal/logging"
)

func TestNewConsoleWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("encode started",
		logging.String(logging.FieldComponent, "scheduler"),
		logging.String(logging.FieldJobID, "job-1"),
	)
	logger.Debug("suppressed at info level")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)

	if !strings.Contains(text, "INFO scheduler: encode started") {
		t.Fatalf("expected component prefix in console line, got %q", text)
	}
	if !strings.Contains(text, "job_id=job-1") {
		t.Fatalf("expected job_id field, got %q", text)
	}
	if strings.Contains(text, "suppressed") {
		t.Fatalf("debug record must be filtered at info level, got %q", text)
	}
}

func TestNewJSONEmitsLowercaseLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "daemon.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Warn("hardware probe failed", logging.String(logging.FieldBackend, "vaapi"))
	logger.Info("filtered out")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d: %q", len(lines), content)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if record["msg"] != "hardware probe failed" {
		t.Fatalf("unexpected message %v", record["msg"])
	}
	if record["backend"] != "vaapi" {
		t.Fatalf("unexpected backend %v", record["backend"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts key in json record")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewCreatesLogDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "squishd.log")

	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")

	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file created: %v", err)
	}
}

func TestConsoleHandlerQuotesAndGroups(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.WithGroup("ffmpeg").Error("exit status",
		logging.String("argv", "ffmpeg -i in.mkv"),
		logging.Error(errors.New("signal: killed")),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)

	if !strings.Contains(text, `ffmpeg.argv="ffmpeg -i in.mkv"`) {
		t.Fatalf("expected quoted grouped attr, got %q", text)
	}
	if !strings.Contains(text, `ffmpeg.error="signal: killed"`) {
		t.Fatalf("expected error attr, got %q", text)
	}
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("never shown", logging.Error(errors.New("ignored")))
}
