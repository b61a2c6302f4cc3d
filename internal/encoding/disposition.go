package encoding

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"squish/internal/config"
	"squish/internal/library"
	"squish/internal/logging"
)

// Disposer applies the configured original-file policy after verification.
// Callers must only invoke Apply for jobs whose output passed Verify; no
// failure path in this package reaches disposition.
type Disposer struct {
	policy    config.OriginalPolicy
	backupDir string
	logger    *slog.Logger
}

// NewDisposer constructs a Disposer from daemon configuration.
func NewDisposer(cfg *config.Config, logger *slog.Logger) *Disposer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Disposer{
		policy:    cfg.Policy(),
		backupDir: cfg.Paths.BackupDir,
		logger:    logger.With(logging.String(logging.FieldComponent, "disposition")),
	}
}

// Apply executes exactly one of keep, move, or delete against the original
// file and returns the action taken.
func (d *Disposer) Apply(media *library.MediaItem) (config.OriginalPolicy, error) {
	switch d.policy {
	case config.PolicyDelete:
		if err := os.Remove(media.Path); err != nil {
			return d.policy, fmt.Errorf("delete original: %w", err)
		}
		d.logger.Info("original deleted",
			logging.String(logging.FieldMediaID, media.ID),
			logging.String("path", media.Path),
		)
	case config.PolicyMove:
		target := filepath.Join(d.backupDir, filepath.Base(media.Path))
		if err := moveFile(media.Path, target); err != nil {
			return d.policy, fmt.Errorf("move original: %w", err)
		}
		d.logger.Info("original moved",
			logging.String(logging.FieldMediaID, media.ID),
			logging.String("path", media.Path),
			logging.String("target", target),
		)
	default:
		d.logger.Debug("original kept",
			logging.String(logging.FieldMediaID, media.ID),
			logging.String("path", media.Path),
		)
	}
	return d.policy, nil
}

// moveFile renames, falling back to copy-and-remove when the backup
// directory sits on a different filesystem.
func moveFile(source, target string) error {
	if err := os.Rename(source, target); err == nil {
		return nil
	} else if !errors.Is(err, unix.EXDEV) {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(target)
		return err
	}
	return os.Remove(source)
}
