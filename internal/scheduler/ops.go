package scheduler

import (
	"context"
	"fmt"

	"squish/internal/hwcaps"
	"squish/internal/logging"
	"squish/internal/queue"
	"squish/internal/services"
)

// Submit validates the media and preset references and enqueues a job.
func (s *Scheduler) Submit(ctx context.Context, mediaID, presetName string, priority int) (*queue.Job, error) {
	media, err := s.media.GetByID(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("resolve media: %w", err)
	}
	if media == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "submit", "unknown media "+mediaID, nil)
	}
	if _, ok := s.presets.Get(presetName); !ok {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "submit", "unknown preset "+presetName, nil)
	}

	job, err := s.jobs.NewJob(ctx, mediaID, presetName, priority)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldMediaID, mediaID),
		logging.String(logging.FieldPreset, presetName),
	)
	s.publish(jobEvent(job))
	s.kick()
	return job, nil
}

// Cancel stops a job. A queued job transitions directly to cancelled and
// never spawns a process; a running or paused job has its process group
// killed and transitions once the process has actually exited.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (*queue.Job, error) {
	s.mu.Lock()
	entry, inFlight := s.active[jobID]
	s.mu.Unlock()

	if inFlight {
		// Resume first so a paused group can observe the kill.
		if entry.proc != nil {
			_ = entry.proc.Resume()
		}
		entry.cancel()
		return s.jobs.GetByID(ctx, jobID)
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if job.Status != queue.StatusQueued {
		return nil, fmt.Errorf("job %s is %s and cannot be cancelled", jobID, job.Status)
	}

	job.MarkCancelled()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("queued job cancelled", logging.String(logging.FieldJobID, jobID))
	s.publish(jobEvent(job))
	return job, nil
}

// Retry requeues a failed job while retries remain.
func (s *Scheduler) Retry(ctx context.Context, jobID string) (*queue.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if job.Status != queue.StatusFailed {
		return nil, fmt.Errorf("job %s is %s; only failed jobs can be retried", jobID, job.Status)
	}
	if job.RetryCount >= s.cfg.Jobs.MaxRetries {
		return nil, fmt.Errorf("job %s has exhausted its %d retries", jobID, s.cfg.Jobs.MaxRetries)
	}

	job.Requeue()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job retried",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("retries", job.RetryCount),
	)
	s.publish(jobEvent(job))
	s.kick()
	return job, nil
}

// Reorder changes a queued job's priority. Running jobs are never preempted
// or demoted.
func (s *Scheduler) Reorder(ctx context.Context, jobID string, priority int) (*queue.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if job.Status != queue.StatusQueued {
		return nil, fmt.Errorf("job %s is %s; only queued jobs can be reordered", jobID, job.Status)
	}

	job.Priority = priority
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.publish(jobEvent(job))
	s.kick()
	return job, nil
}

// Pause suspends a running job's process group. The job keeps its
// concurrency slot so resume is immediate.
func (s *Scheduler) Pause(ctx context.Context, jobID string) (*queue.Job, error) {
	return s.suspend(ctx, jobID, true)
}

// Resume continues a paused job.
func (s *Scheduler) Resume(ctx context.Context, jobID string) (*queue.Job, error) {
	return s.suspend(ctx, jobID, false)
}

func (s *Scheduler) suspend(ctx context.Context, jobID string, pause bool) (*queue.Job, error) {
	s.mu.Lock()
	entry := s.active[jobID]
	s.mu.Unlock()

	if entry == nil || entry.proc == nil {
		return nil, fmt.Errorf("job %s has no running process", jobID)
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	if pause {
		if job.Status != queue.StatusRunning {
			return nil, fmt.Errorf("job %s is %s; only running jobs can be paused", jobID, job.Status)
		}
		if err := entry.proc.Pause(); err != nil {
			return nil, err
		}
		job.Status = queue.StatusPaused
	} else {
		if job.Status != queue.StatusPaused {
			return nil, fmt.Errorf("job %s is %s; only paused jobs can be resumed", jobID, job.Status)
		}
		if err := entry.proc.Resume(); err != nil {
			return nil, err
		}
		job.Status = queue.StatusRunning
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job suspension changed",
		logging.String(logging.FieldJobID, jobID),
		logging.String("status", string(job.Status)),
	)
	s.publish(jobEvent(job))
	return job, nil
}

// Get returns a job snapshot.
func (s *Scheduler) Get(ctx context.Context, jobID string) (*queue.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// List returns job snapshots, optionally filtered by status.
func (s *Scheduler) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return s.jobs.List(ctx, statuses...)
}

// HardwareReport returns the current capability snapshot for diagnostics.
func (s *Scheduler) HardwareReport(ctx context.Context) hwcaps.Snapshot {
	return s.detector.Snapshot(ctx)
}

// RefreshHardware forces a capability re-probe. Jobs in flight keep the
// snapshot they started with.
func (s *Scheduler) RefreshHardware(ctx context.Context) hwcaps.Snapshot {
	return s.detector.Refresh(ctx)
}
