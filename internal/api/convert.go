package api

import (
	"time"

	"squish/internal/hwcaps"
	"squish/internal/library"
	"squish/internal/queue"
	"squish/internal/scheduler"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(dateTimeFormat)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

// FromJob converts a queue row into its transport form. The media title is
// optional; callers that already resolved the media item pass it through.
func FromJob(job *queue.Job, mediaTitle string) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:           job.ID,
		MediaID:      job.MediaID,
		MediaTitle:   mediaTitle,
		Preset:       job.PresetName,
		Priority:     job.Priority,
		Status:       string(job.Status),
		Progress:     job.Progress,
		ChosenPath:   job.ChosenPath,
		OutputPath:   job.OutputPath,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		QueuedAt:     formatTime(job.QueuedAt),
		StartedAt:    formatTimePtr(job.StartedAt),
		EndedAt:      formatTimePtr(job.EndedAt),
	}
}

// FromMediaItem converts a library row into its transport form.
func FromMediaItem(item *library.MediaItem) Media {
	if item == nil {
		return Media{}
	}
	return Media{
		ID:         item.ID,
		Path:       item.Path,
		Title:      item.Title,
		Kind:       string(item.Kind),
		Container:  item.Container,
		VideoCodec: item.VideoCodec,
		AudioCodec: item.AudioCodec,
		Width:      item.Width,
		Height:     item.Height,
		Duration:   item.Duration,
		Size:       item.Size,
	}
}

// FromSnapshot converts a capability snapshot, listing backends in probe
// order so output is stable.
func FromSnapshot(snapshot hwcaps.Snapshot) HardwareReport {
	report := HardwareReport{
		Capabilities: make([]Capability, 0, len(snapshot.Capabilities)),
		ProbedAt:     formatTime(snapshot.ProbedAt),
	}
	for _, backend := range hwcaps.Backends {
		capability, ok := snapshot.Capabilities[backend]
		if !ok {
			continue
		}
		report.Capabilities = append(report.Capabilities, Capability{
			Backend:  string(capability.Backend),
			Device:   capability.Device,
			Working:  capability.Working,
			Detail:   capability.Detail,
			ProbedAt: formatTime(capability.ProbedAt),
		})
	}
	return report
}

// FromEvent converts a scheduler event for feed consumers.
func FromEvent(event scheduler.Event) JobEvent {
	return JobEvent{
		JobID:      event.JobID,
		Status:     string(event.Status),
		Progress:   event.Progress,
		ChosenPath: event.ChosenPath,
	}
}
