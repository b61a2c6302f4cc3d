package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcode job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// PathSoftware is the chosen encode path recorded when no hardware backend
// carried the job.
const PathSoftware = "software"

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// activeStatuses are the states that occupy a concurrency slot and pin a
// media item.
var activeStatuses = map[Status]struct{}{
	StatusRunning: {},
	StatusPaused:  {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActiveStatus reports whether a status occupies a concurrency slot.
func IsActiveStatus(status Status) bool {
	_, ok := activeStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status ends the job's lifecycle.
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is a unit of transcode work persisted in SQLite. It references its
// media item and preset by identifier only.
type Job struct {
	ID           string
	MediaID      string
	PresetName   string
	Priority     int
	Status       Status
	Progress     float64
	ChosenPath   string
	OutputPath   string
	ErrorMessage string
	RetryCount   int
	QueuedAt     time.Time
	StartedAt    *time.Time
	EndedAt      *time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the job occupies a concurrency slot.
func (j Job) IsActive() bool {
	return IsActiveStatus(j.Status)
}

// IsTerminal reports whether the job has finished its lifecycle.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// MarkRunning transitions the job into running and stamps the start time on
// first admission. Progress restarts from zero on every admission.
func (j *Job) MarkRunning() {
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.Progress = 0
	j.ErrorMessage = ""
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
}

// MarkCompleted finalizes a verified job. The output path is recorded only
// here, never on a failure path.
func (j *Job) MarkCompleted(outputPath string) {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Progress = 1
	j.OutputPath = outputPath
	j.EndedAt = &now
}

// MarkFailed records a terminal failure with its diagnostic detail.
func (j *Job) MarkFailed(message string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.EndedAt = &now
}

// MarkCancelled records a user-initiated stop.
func (j *Job) MarkCancelled() {
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.EndedAt = &now
}

// Requeue returns the job to the queue for another attempt, bumping the
// retry counter and clearing per-attempt state.
func (j *Job) Requeue() {
	j.Status = StatusQueued
	j.Progress = 0
	j.ChosenPath = ""
	j.OutputPath = ""
	j.ErrorMessage = ""
	j.EndedAt = nil
	j.RetryCount++
}
