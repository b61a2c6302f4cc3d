package api

import (
	"testing"
	"time"

	"squish/internal/hwcaps"
	"squish/internal/library"
	"squish/internal/queue"
	"squish/internal/scheduler"
)

func TestFromJobFormatsTimestamps(t *testing.T) {
	queued := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	started := queued.Add(time.Minute)
	job := &queue.Job{
		ID:         "job-1",
		MediaID:    "media-1",
		PresetName: "fast",
		Priority:   3,
		Status:     queue.StatusRunning,
		Progress:   0.5,
		ChosenPath: "vaapi",
		RetryCount: 1,
		QueuedAt:   queued,
		StartedAt:  &started,
	}

	view := FromJob(job, "The Movie")
	if view.Status != "running" {
		t.Fatalf("expected running, got %q", view.Status)
	}
	if view.MediaTitle != "The Movie" {
		t.Fatalf("unexpected title %q", view.MediaTitle)
	}
	if view.QueuedAt != "2025-03-14T09:26:53.000Z" {
		t.Fatalf("unexpected queued timestamp %q", view.QueuedAt)
	}
	if view.StartedAt == "" {
		t.Fatal("expected started timestamp")
	}
	if view.EndedAt != "" {
		t.Fatalf("expected empty ended timestamp, got %q", view.EndedAt)
	}
}

func TestFromJobNil(t *testing.T) {
	view := FromJob(nil, "")
	if view.ID != "" {
		t.Fatalf("expected zero view, got %+v", view)
	}
}

func TestFromSnapshotOrdersByProbeOrder(t *testing.T) {
	now := time.Now()
	snapshot := hwcaps.Snapshot{
		Capabilities: map[hwcaps.Backend]hwcaps.Capability{
			hwcaps.BackendQSV:   {Backend: hwcaps.BackendQSV, Working: false, Detail: "no device", ProbedAt: now},
			hwcaps.BackendVAAPI: {Backend: hwcaps.BackendVAAPI, Device: "/dev/dri/renderD128", Working: true, ProbedAt: now},
		},
		ProbedAt: now,
	}

	report := FromSnapshot(snapshot)
	if len(report.Capabilities) != 2 {
		t.Fatalf("expected 2 capabilities, got %d", len(report.Capabilities))
	}
	if report.Capabilities[0].Backend != "vaapi" || report.Capabilities[1].Backend != "qsv" {
		t.Fatalf("unexpected order: %+v", report.Capabilities)
	}
	if !report.Capabilities[0].Working {
		t.Fatal("vaapi should be working")
	}
	if report.Capabilities[1].Detail != "no device" {
		t.Fatalf("expected failure detail, got %q", report.Capabilities[1].Detail)
	}
}

func TestFromMediaItem(t *testing.T) {
	item := &library.MediaItem{
		ID:         "media-1",
		Path:       "/media/show.mkv",
		Title:      "show",
		Kind:       library.KindEpisode,
		VideoCodec: "hevc",
		Height:     2160,
		Duration:   3600,
	}
	view := FromMediaItem(item)
	if view.Kind != "episode" {
		t.Fatalf("unexpected kind %q", view.Kind)
	}
	if view.Height != 2160 || view.Duration != 3600 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestFromEvent(t *testing.T) {
	view := FromEvent(scheduler.Event{JobID: "job-1", Status: queue.StatusPaused, Progress: 0.25, ChosenPath: "software"})
	if view.Status != "paused" || view.Progress != 0.25 {
		t.Fatalf("unexpected view %+v", view)
	}
}
