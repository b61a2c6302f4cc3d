package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"squish/internal/config"
	"squish/internal/hwcaps"
	"squish/internal/library"
	"squish/internal/logging"
	"squish/internal/presets"
	"squish/internal/queue"
	"squish/internal/scheduler"
)

// Daemon owns the long-lived services and enforces single-instance execution
// through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	jobs      *queue.Store
	media     *library.Store
	presets   *presets.Store
	detector  *hwcaps.Detector
	scheduler *scheduler.Scheduler
	hotplug   *hwcaps.HotplugMonitor
	scanner   *library.Scanner
	logPath   string

	lockPath string
	lock     *flock.Flock

	journal    *eventJournal
	feedCancel func()
	feedWG     sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	SocketPath   string
	QueueStats   map[queue.Status]int
	Hardware     hwcaps.Snapshot
}

// New opens the stores and assembles the services. Start must be called
// before any work happens.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	jobs, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	media, err := library.Open(cfg.LibraryDBPath())
	if err != nil {
		_ = jobs.Close()
		return nil, fmt.Errorf("open media library: %w", err)
	}
	presetStore, err := presets.Load(cfg.Paths.Presets)
	if err != nil {
		_ = jobs.Close()
		_ = media.Close()
		return nil, fmt.Errorf("load presets: %w", err)
	}

	detector := hwcaps.NewDetector(cfg, logger)
	d := &Daemon{
		cfg:       cfg,
		logger:    logger.With(logging.String(logging.FieldComponent, "daemon")),
		jobs:      jobs,
		media:     media,
		presets:   presetStore,
		detector:  detector,
		scheduler: scheduler.New(cfg, jobs, media, presetStore, detector, logger),
		scanner:   library.NewScanner(media, cfg.Paths.FFprobeBin, logger),
		logPath:   filepath.Join(cfg.Paths.LogDir, "squishd.log"),
		lockPath:  cfg.Paths.LockFile,
		lock:      flock.New(cfg.Paths.LockFile),
		journal:   newEventJournal(512),
	}
	if cfg.Hardware.HotplugRef {
		d.hotplug = hwcaps.NewHotplugMonitor(detector, logger)
	}
	return d, nil
}

// Start acquires the lock, runs the initial capability probe, and launches
// the scheduler and hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another squish daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Probing before admission means the first admitted job never waits on a
	// cold detector.
	snapshot := d.detector.Snapshot(d.ctx)
	for _, backend := range hwcaps.Backends {
		capability := snapshot.Capabilities[backend]
		d.logger.Info("hardware backend probed",
			logging.String(logging.FieldBackend, string(backend)),
			logging.Bool("working", capability.Working),
		)
	}

	if err := d.scheduler.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if d.hotplug != nil {
		_ = d.hotplug.Start(d.ctx)
	}

	feed, cancelFeed := d.scheduler.Subscribe()
	d.feedCancel = cancelFeed
	d.feedWG.Add(1)
	go func() {
		defer d.feedWG.Done()
		for event := range feed {
			d.journal.record(event)
		}
	}()

	d.running.Store(true)
	d.logger.Info("squish daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the services down in reverse order of Start and releases the
// lock. In-flight jobs are requeued by the scheduler, not cancelled.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.hotplug != nil {
		d.hotplug.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.feedCancel != nil {
		d.feedCancel()
		d.feedCancel = nil
	}
	d.scheduler.Stop()
	d.feedWG.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("squish daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.jobs != nil {
		firstErr = d.jobs.Close()
	}
	if d.media != nil {
		if err := d.media.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Running reports whether the daemon services are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.jobs.Stats(ctx)
	if err != nil {
		d.logger.Warn("collecting queue stats failed", logging.Error(err))
		stats = map[queue.Status]int{}
	}
	// Before the first probe the zero snapshot stands in for "not probed yet".
	hardware, _ := d.detector.Cached()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.Paths.Socket,
		QueueStats:   stats,
		Hardware:     hardware,
	}
}

// Scheduler exposes job operations to the IPC layer.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// Events returns journal entries at or after cursor, plus the cursor for the
// next poll. The journal is bounded; entries evicted before the cursor are
// skipped.
func (d *Daemon) Events(cursor int64, limit int) ([]Event, int64) {
	return d.journal.since(cursor, limit)
}

// ScanLibrary walks the media root and ingests new video files.
func (d *Daemon) ScanLibrary(ctx context.Context) (int, error) {
	return d.scanner.Scan(ctx, d.cfg.Paths.MediaDir)
}

// AddFile probes a single file and adds it to the library. The path must be
// a regular file with a recognized video extension.
func (d *Daemon) AddFile(ctx context.Context, sourcePath string) (*library.MediaItem, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	item, err := d.scanner.Ingest(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("ingest file: %w", err)
	}
	d.logger.Info("media item added manually",
		logging.String(logging.FieldMediaID, item.ID),
		logging.String("source", absPath),
	)
	return item, nil
}

// ListMedia returns all library items.
func (d *Daemon) ListMedia(ctx context.Context) ([]*library.MediaItem, error) {
	return d.media.List(ctx)
}

// GetMedia returns a single library item.
func (d *Daemon) GetMedia(ctx context.Context, id string) (*library.MediaItem, error) {
	return d.media.GetByID(ctx, id)
}

// RemoveMedia deletes a library item. Items with active jobs are protected.
func (d *Daemon) RemoveMedia(ctx context.Context, id string) (bool, error) {
	active, err := d.jobs.ActiveForMedia(ctx, id)
	if err != nil {
		return false, err
	}
	if active {
		return false, fmt.Errorf("media %s has an active job", id)
	}
	return d.media.Remove(ctx, id)
}

// PresetNames returns the configured preset names.
func (d *Daemon) PresetNames() []string {
	return d.presets.Names()
}

// ClearFinished removes completed, failed, and cancelled jobs.
func (d *Daemon) ClearFinished(ctx context.Context) (int64, error) {
	return d.jobs.ClearFinished(ctx)
}

// RemoveJob deletes a job row. Active jobs must be cancelled first.
func (d *Daemon) RemoveJob(ctx context.Context, id string) (bool, error) {
	job, err := d.jobs.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	switch job.Status {
	case queue.StatusRunning, queue.StatusPaused:
		return false, fmt.Errorf("job %s is %s; cancel it first", id, job.Status)
	}
	return d.jobs.Remove(ctx, id)
}
