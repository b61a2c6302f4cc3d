package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"squish/internal/config"
	"squish/internal/encoding"
	"squish/internal/hwcaps"
	"squish/internal/library"
	"squish/internal/logging"
	"squish/internal/presets"
	"squish/internal/queue"
	"squish/internal/services"
)

// Scheduler coordinates job admission and execution. One instance runs per
// daemon process.
type Scheduler struct {
	cfg      *config.Config
	jobs     *queue.Store
	media    *library.Store
	presets  *presets.Store
	detector *hwcaps.Detector
	runner   *encoding.Runner
	verifier *encoding.Verifier
	disposer *encoding.Disposer
	logger   *slog.Logger

	mu      sync.Mutex
	active  map[string]*attempt
	subs    map[int]chan Event
	nextSub int
	running bool

	notify chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// attempt tracks one in-flight encode so cancel, pause, and resume can reach
// the live process. proc is nil between admission and process start.
type attempt struct {
	cancel context.CancelFunc
	proc   *encoding.Process
}

// New constructs a Scheduler. The detector is shared with the IPC layer so
// diagnostic reports and planning decisions see the same snapshots.
func New(
	cfg *config.Config,
	jobs *queue.Store,
	media *library.Store,
	presetStore *presets.Store,
	detector *hwcaps.Detector,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		jobs:     jobs,
		media:    media,
		presets:  presetStore,
		detector: detector,
		runner:   encoding.NewRunner(cfg, logger),
		verifier: encoding.NewVerifier(cfg, logger),
		disposer: encoding.NewDisposer(cfg, logger),
		logger:   logger.With(logging.String(logging.FieldComponent, "scheduler")),
		active:   make(map[string]*attempt),
		subs:     make(map[int]chan Event),
		notify:   make(chan struct{}, 1),
	}
}

// Start launches the admission loop. Jobs left active by a previous process
// are requeued first so no slot is leaked across restarts.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	reset, err := s.jobs.ResetStuckActive(runCtx)
	if err != nil {
		return err
	}
	if reset > 0 {
		s.logger.Info("requeued jobs from previous run", logging.Int64("count", reset))
	}

	s.wg.Add(1)
	go s.admissionLoop(runCtx)
	return nil
}

// Stop cancels all in-flight attempts and waits for workers to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

// kick nudges the admission loop without waiting for the poll tick.
func (s *Scheduler) kick() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) admissionLoop(ctx context.Context) {
	defer s.wg.Done()

	pollInterval := time.Duration(s.cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.admit(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		case <-ticker.C:
		}
	}
}

// admit moves queued jobs into running while concurrency slots remain.
// Priority then queue time decides order; media exclusivity is enforced by
// the store query.
func (s *Scheduler) admit(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		activeCount, err := s.jobs.CountActive(ctx)
		if err != nil {
			s.logger.Error("counting active jobs failed", logging.Error(err))
			return
		}
		if activeCount >= s.cfg.Jobs.MaxConcurrent {
			return
		}

		job, err := s.jobs.NextQueued(ctx)
		if err != nil {
			s.logger.Error("fetching next job failed", logging.Error(err))
			return
		}
		if job == nil {
			return
		}

		job.MarkRunning()
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Error("admitting job failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
			return
		}
		s.publish(jobEvent(job))

		s.logger.Info("job admitted",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldMediaID, job.MediaID),
			logging.String(logging.FieldPreset, job.PresetName),
			logging.Int("priority", job.Priority),
		)

		s.wg.Add(1)
		go func(job *queue.Job) {
			defer s.wg.Done()
			s.runJob(ctx, job)
			s.kick()
		}(job)
	}
}

// runJob drives one admitted job to a terminal state or back to queued for a
// bounded retry.
func (s *Scheduler) runJob(ctx context.Context, job *queue.Job) {
	media, preset, err := s.resolve(ctx, job)
	if err != nil {
		s.finishAttempt(ctx, job, err)
		return
	}

	// The capability snapshot is pinned for the whole attempt; a concurrent
	// re-probe never destabilizes a job in flight.
	caps := s.detector.Snapshot(ctx)

	err = s.attempt(ctx, job, media, preset, caps, false)
	if err != nil && preset.AllowFallback && s.eligibleForFallback(err, job) {
		s.logger.Warn("hardware encode failed, retrying on software path",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldBackend, job.ChosenPath),
			logging.Error(err),
		)
		job.RetryCount++
		job.Progress = 0
		err = s.attempt(ctx, job, media, preset, caps, true)
	}
	s.finishAttempt(ctx, job, err)
}

func (s *Scheduler) resolve(ctx context.Context, job *queue.Job) (*library.MediaItem, presets.Preset, error) {
	media, err := s.media.GetByID(ctx, job.MediaID)
	if err != nil {
		return nil, presets.Preset{}, services.Wrap(services.ErrProbe, "scheduler", "resolve media", job.MediaID, err)
	}
	if media == nil {
		return nil, presets.Preset{}, services.Wrap(services.ErrProbe, "scheduler", "resolve media", job.MediaID+" not found", nil)
	}
	preset, ok := s.presets.Get(job.PresetName)
	if !ok {
		return nil, presets.Preset{}, services.Wrap(services.ErrConfiguration, "scheduler", "resolve preset", job.PresetName+" not found", nil)
	}
	return media, preset, nil
}

// attempt runs one encode pass: build, supervise, verify, dispose.
func (s *Scheduler) attempt(
	ctx context.Context,
	job *queue.Job,
	media *library.MediaItem,
	preset presets.Preset,
	caps hwcaps.Snapshot,
	forceSoftware bool,
) error {
	plan, err := encoding.BuildPlan(media, preset, caps, s.cfg.Paths.OutputDir, forceSoftware)
	if err != nil {
		return err
	}

	job.ChosenPath = plan.ChosenPath()
	if err := s.jobs.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrEncodeProcess, "scheduler", "persist chosen path", job.ID, err)
	}
	s.publish(jobEvent(job))

	// Each attempt gets its own request id so a fallback pass is
	// distinguishable from the hardware pass in the logs.
	attemptLog := s.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldRequestID, uuid.NewString()),
	)
	attemptLog.Info("encode attempt started",
		logging.String(logging.FieldBackend, job.ChosenPath),
		logging.Int("retries", job.RetryCount),
	)

	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if s.cfg.Jobs.EncodeTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.Jobs.EncodeTimeout)*time.Second)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	s.active[job.ID] = &attempt{cancel: cancel}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, job.ID)
		s.mu.Unlock()
	}()

	onProgress := func(fraction float64) {
		if err := s.jobs.UpdateProgress(ctx, job.ID, fraction); err != nil {
			attemptLog.Warn("persisting progress failed", logging.Error(err))
		}
		job.Progress = fraction
		s.publish(Event{JobID: job.ID, Status: queue.StatusRunning, Progress: fraction, ChosenPath: job.ChosenPath})
	}

	proc, err := s.runner.Start(attemptCtx, plan, media.Duration, onProgress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if entry, ok := s.active[job.ID]; ok {
		entry.proc = proc
	}
	s.mu.Unlock()

	if err := proc.Wait(); err != nil {
		return err
	}

	if err := s.verifier.Verify(ctx, media, plan.OutputPath); err != nil {
		return err
	}

	if _, err := s.disposer.Apply(media); err != nil {
		// The encode is verified; a disposition failure is an operator
		// problem, not a job failure.
		attemptLog.Warn("original disposition failed",
			logging.String("path", media.Path),
			logging.Error(err),
		)
	}

	job.MarkCompleted(plan.OutputPath)
	return nil
}

// eligibleForFallback gates the single automatic hardware-to-software retry.
func (s *Scheduler) eligibleForFallback(err error, job *queue.Job) bool {
	if job.ChosenPath == "" || job.ChosenPath == queue.PathSoftware {
		return false
	}
	return errors.Is(err, services.ErrEncodeProcess)
}

// finishAttempt applies the terminal (or requeue) transition for a job whose
// attempt has ended. Persistence uses its own context so a shutdown that
// cancelled the attempt cannot also lose the transition.
func (s *Scheduler) finishAttempt(ctx context.Context, job *queue.Job, err error) {
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case err == nil:
		s.logger.Info("job completed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("output", job.OutputPath),
			logging.String(logging.FieldBackend, job.ChosenPath),
			logging.Int("retries", job.RetryCount),
		)
	case errors.Is(err, services.ErrCancelled) && ctx.Err() != nil:
		// Daemon shutdown, not a user cancel: the job goes back to the
		// queue without spending a retry.
		job.Status = queue.StatusQueued
		job.Progress = 0
		job.ChosenPath = ""
		s.logger.Info("job requeued for shutdown", logging.String(logging.FieldJobID, job.ID))
	case errors.Is(err, services.ErrCancelled):
		job.MarkCancelled()
		s.logger.Info("job cancelled", logging.String(logging.FieldJobID, job.ID))
	case services.Retryable(err) && job.RetryCount < s.cfg.Jobs.MaxRetries:
		message := err.Error()
		job.Requeue()
		job.ErrorMessage = message
		s.logger.Warn("job requeued after failure",
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("retries", job.RetryCount),
			logging.Error(err),
		)
	default:
		job.MarkFailed(err.Error())
		s.logger.Error("job failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}

	if updateErr := s.jobs.Update(persistCtx, job); updateErr != nil {
		s.logger.Error("persisting job outcome failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(updateErr),
		)
	}
	s.publish(jobEvent(job))
}
