package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory, socket, and binary configuration.
type Paths struct {
	MediaDir   string `toml:"media_dir"`
	OutputDir  string `toml:"output_dir"`
	BackupDir  string `toml:"backup_dir"`
	LogDir     string `toml:"log_dir"`
	Socket     string `toml:"socket"`
	LockFile   string `toml:"lock_file"`
	FFmpegBin  string `toml:"ffmpeg_bin"`
	FFprobeBin string `toml:"ffprobe_bin"`
	Presets    string `toml:"presets_file"`
}

// OriginalPolicy names a disposition applied to the source file after a
// verified transcode.
type OriginalPolicy string

const (
	PolicyKeep   OriginalPolicy = "keep"
	PolicyMove   OriginalPolicy = "move"
	PolicyDelete OriginalPolicy = "delete"
)

// Jobs contains scheduler and retry configuration.
type Jobs struct {
	MaxConcurrent  int    `toml:"max_concurrent"`
	MaxRetries     int    `toml:"max_retries"`
	OriginalPolicy string `toml:"original_policy"`
	EncodeTimeout  int    `toml:"encode_timeout"`
}

// Hardware contains acceleration probe configuration.
type Hardware struct {
	Device     string `toml:"device"`
	ProbeTTL   int    `toml:"probe_ttl"`
	HotplugRef bool   `toml:"hotplug_reprobe"`
}

// Workflow contains daemon timing configuration.
type Workflow struct {
	QueuePollInterval      int `toml:"queue_poll_interval"`
	ProgressWriteInterval  int `toml:"progress_write_interval_ms"`
	VerifyDurationTolPct   int `toml:"verify_duration_tolerance_pct"`
	VerifyDurationTolFloor int `toml:"verify_duration_tolerance_sec"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Squish.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Jobs     Jobs     `toml:"jobs"`
	Hardware Hardware `toml:"hardware"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/squish/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("squish.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.BackupDir) != "" {
		if err := os.MkdirAll(c.Paths.BackupDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.BackupDir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.Socket); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the job database location under the log directory.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}

// LibraryDBPath returns the media library database location.
func (c *Config) LibraryDBPath() string {
	return filepath.Join(c.Paths.LogDir, "library.db")
}

// Policy returns the parsed original-file disposition policy.
func (c *Config) Policy() OriginalPolicy {
	switch strings.ToLower(strings.TrimSpace(c.Jobs.OriginalPolicy)) {
	case string(PolicyMove):
		return PolicyMove
	case string(PolicyDelete):
		return PolicyDelete
	default:
		return PolicyKeep
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
