package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"squish/internal/config"
	"squish/internal/hwcaps"
	"squish/internal/library"
	"squish/internal/logging"
	"squish/internal/presets"
	"squish/internal/queue"
)

const testPresetsJSON = `{
  "presets": {
    "hw": {"codec": "h264", "scale": "720p", "container": ".mkv", "audio_codec": "aac", "hardware": "preferred", "allow_fallback": true},
    "sw": {"codec": "h264", "scale": "720p", "container": ".mkv", "audio_codec": "aac", "hardware": "disabled", "allow_fallback": false}
  }
}`

// harness wires a scheduler against fake ffmpeg/ffprobe executables.
type harness struct {
	cfg       *config.Config
	scheduler *Scheduler
	jobs      *queue.Store
	media     *library.Store
	dir       string
	invokeLog string
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// newHarness builds a scheduler whose ffmpeg is a shell fake. ffmpegBody
// runs after the capability probe branch and after the invocation has been
// logged; "$out" holds the output path.
func newHarness(t *testing.T, maxConcurrent int, ffmpegBody string, overrides ...func(*config.Config)) *harness {
	t.Helper()
	dir := t.TempDir()
	invokeLog := filepath.Join(dir, "invocations.log")

	ffmpeg := writeScript(t, dir, "ffmpeg", fmt.Sprintf(`echo "$@" >> %q
case "$*" in *testsrc*) exit 0;; esac
for a; do out="$a"; done
%s`, invokeLog, ffmpegBody))

	ffprobe := writeScript(t, dir, "ffprobe", `cat <<'PROBE'
{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":1280,"height":720}],"format":{"format_name":"matroska,webm","duration":"100","size":"1000"}}
PROBE`)

	cfg := config.Default()
	cfg.Paths.FFmpegBin = ffmpeg
	cfg.Paths.FFprobeBin = ffprobe
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.MediaDir = dir
	cfg.Paths.Socket = filepath.Join(dir, "squishd.sock")
	cfg.Paths.LockFile = filepath.Join(dir, "squishd.lock")
	cfg.Jobs.MaxConcurrent = maxConcurrent
	cfg.Jobs.MaxRetries = 2
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ProgressWriteInterval = 1
	for _, override := range overrides {
		override(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	jobs, err := queue.Open(&cfg)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = jobs.Close() })

	media, err := library.Open(filepath.Join(dir, "media.db"))
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	t.Cleanup(func() { _ = media.Close() })

	presetStore, err := presets.Parse([]byte(testPresetsJSON))
	if err != nil {
		t.Fatalf("parse presets: %v", err)
	}

	detector := hwcaps.NewDetector(&cfg, logging.NewNop())
	sched := New(&cfg, jobs, media, presetStore, detector, logging.NewNop())
	return &harness{cfg: &cfg, scheduler: sched, jobs: jobs, media: media, dir: dir, invokeLog: invokeLog}
}

func (h *harness) addMedia(t *testing.T, id string) *library.MediaItem {
	t.Helper()
	path := filepath.Join(h.dir, id+".mkv")
	if err := os.WriteFile(path, []byte("original bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	item := &library.MediaItem{
		ID:         id,
		Path:       path,
		Title:      id,
		Kind:       library.KindMovie,
		Container:  "matroska,webm",
		VideoCodec: "hevc",
		AudioCodec: "dts",
		Width:      3840,
		Height:     2160,
		Duration:   100,
		Size:       14,
	}
	if err := h.media.Put(context.Background(), item); err != nil {
		t.Fatalf("put media: %v", err)
	}
	return item
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	t.Cleanup(h.scheduler.Stop)
}

func (h *harness) waitForStatus(t *testing.T, jobID string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.jobs.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	job, _ := h.jobs.GetByID(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last state %+v", jobID, want, job)
	return nil
}

func (h *harness) invocations(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(h.invokeLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var encodes []string
	for _, line := range lines {
		if line == "" || strings.Contains(line, "testsrc") {
			continue
		}
		encodes = append(encodes, line)
	}
	return encodes
}

const successBody = `printf 'encoded bytes' > "$out"
echo "out_time=00:00:50.000000"
echo "progress=end"
exit 0`

const slowSuccessBody = `sleep 0.4
printf 'encoded bytes' > "$out"
echo "progress=end"
exit 0`

const hardwareFailBody = `case "$*" in *_vaapi*|*_nvenc*|*_qsv*)
  echo "hardware encoder initialization failed" >&2
  exit 1
  ;;
esac
printf 'encoded bytes' > "$out"
echo "progress=end"
exit 0`

func TestSubmitRejectsUnknownReferences(t *testing.T) {
	h := newHarness(t, 1, successBody)
	media := h.addMedia(t, "media-1")

	if _, err := h.scheduler.Submit(context.Background(), "ghost", "sw", 0); err == nil {
		t.Fatal("expected error for unknown media")
	}
	if _, err := h.scheduler.Submit(context.Background(), media.ID, "ghost", 0); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestJobCompletesOnSoftwarePath(t *testing.T) {
	h := newHarness(t, 1, successBody)
	media := h.addMedia(t, "media-1")
	h.start(t)

	job, err := h.scheduler.Submit(context.Background(), media.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := h.waitForStatus(t, job.ID, queue.StatusCompleted)
	if done.ChosenPath != queue.PathSoftware {
		t.Fatalf("expected software path, got %q", done.ChosenPath)
	}
	if done.OutputPath == "" {
		t.Fatal("expected output path on completed job")
	}
	if _, err := os.Stat(done.OutputPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	// Default policy keeps the original.
	if _, err := os.Stat(media.Path); err != nil {
		t.Fatalf("original must be kept: %v", err)
	}
	if done.Progress != 1 {
		t.Fatalf("expected progress 1.0, got %f", done.Progress)
	}
}

func TestJobUsesHardwarePathWhenWorking(t *testing.T) {
	h := newHarness(t, 1, successBody)
	media := h.addMedia(t, "media-1")
	h.start(t)

	job, err := h.scheduler.Submit(context.Background(), media.ID, "hw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := h.waitForStatus(t, job.ID, queue.StatusCompleted)
	if done.ChosenPath != "vaapi" {
		t.Fatalf("expected vaapi path, got %q", done.ChosenPath)
	}
	if done.RetryCount != 0 {
		t.Fatalf("expected no retries, got %d", done.RetryCount)
	}
}

func TestHardwareFailureFallsBackToSoftware(t *testing.T) {
	h := newHarness(t, 1, hardwareFailBody)
	media := h.addMedia(t, "media-1")
	h.start(t)

	job, err := h.scheduler.Submit(context.Background(), media.ID, "hw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := h.waitForStatus(t, job.ID, queue.StatusCompleted)
	if done.ChosenPath != queue.PathSoftware {
		t.Fatalf("expected software fallback, got %q", done.ChosenPath)
	}
	if done.RetryCount != 1 {
		t.Fatalf("expected retry count 1 after fallback, got %d", done.RetryCount)
	}

	encodes := h.invocations(t)
	if len(encodes) != 2 {
		t.Fatalf("expected hardware then software invocation, got %d: %v", len(encodes), encodes)
	}
	if !strings.Contains(encodes[0], "h264_vaapi") {
		t.Fatalf("first attempt should be hardware: %q", encodes[0])
	}
	if !strings.Contains(encodes[1], "libx264") {
		t.Fatalf("second attempt should be software: %q", encodes[1])
	}
}

func TestConcurrencyCeilingHolds(t *testing.T) {
	h := newHarness(t, 1, slowSuccessBody)
	first := h.addMedia(t, "media-1")
	second := h.addMedia(t, "media-2")
	h.start(t)

	jobA, err := h.scheduler.Submit(context.Background(), first.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	jobB, err := h.scheduler.Submit(context.Background(), second.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.waitForStatus(t, jobA.ID, queue.StatusRunning)

	// While the first job runs, the ceiling keeps the second queued.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count, err := h.jobs.CountActive(context.Background())
		if err != nil {
			t.Fatalf("count active: %v", err)
		}
		if count > 1 {
			t.Fatalf("concurrency ceiling exceeded: %d active", count)
		}
		b, err := h.jobs.GetByID(context.Background(), jobB.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if b.Status == queue.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.waitForStatus(t, jobA.ID, queue.StatusCompleted)
	h.waitForStatus(t, jobB.ID, queue.StatusCompleted)
}

func TestSameMediaJobsNeverRunConcurrently(t *testing.T) {
	h := newHarness(t, 2, slowSuccessBody)
	media := h.addMedia(t, "media-1")
	h.start(t)

	jobA, err := h.scheduler.Submit(context.Background(), media.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	jobB, err := h.scheduler.Submit(context.Background(), media.ID, "hw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.waitForStatus(t, jobA.ID, queue.StatusRunning)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a, err := h.jobs.GetByID(context.Background(), jobA.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		b, err := h.jobs.GetByID(context.Background(), jobB.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if a.Status == queue.StatusRunning && b.Status == queue.StatusRunning {
			t.Fatal("two jobs for the same media ran concurrently")
		}
		if a.Status == queue.StatusCompleted && b.Status == queue.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.waitForStatus(t, jobA.ID, queue.StatusCompleted)
	h.waitForStatus(t, jobB.ID, queue.StatusCompleted)
}

func TestCancelQueuedNeverSpawnsProcess(t *testing.T) {
	h := newHarness(t, 1, slowSuccessBody)
	first := h.addMedia(t, "media-1")
	second := h.addMedia(t, "media-2")
	h.start(t)

	jobA, err := h.scheduler.Submit(context.Background(), first.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.waitForStatus(t, jobA.ID, queue.StatusRunning)

	jobB, err := h.scheduler.Submit(context.Background(), second.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := h.scheduler.Cancel(context.Background(), jobB.ID); err != nil {
		t.Fatalf("cancel queued: %v", err)
	}
	cancelled := h.waitForStatus(t, jobB.ID, queue.StatusCancelled)
	if cancelled.OutputPath != "" {
		t.Fatal("cancelled queued job must have no output")
	}

	h.waitForStatus(t, jobA.ID, queue.StatusCompleted)
	for _, line := range h.invocations(t) {
		if strings.Contains(line, second.Path) {
			t.Fatalf("cancelled queued job spawned a process: %q", line)
		}
	}
}

func TestCancelRunningRemovesPartialOutput(t *testing.T) {
	h := newHarness(t, 1, `printf 'partial' > "$out"
sleep 30
exit 0`)
	media := h.addMedia(t, "media-1")
	h.start(t)

	job, err := h.scheduler.Submit(context.Background(), media.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.waitForStatus(t, job.ID, queue.StatusRunning)
	time.Sleep(100 * time.Millisecond)

	if _, err := h.scheduler.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("cancel running: %v", err)
	}
	done := h.waitForStatus(t, job.ID, queue.StatusCancelled)
	if done.OutputPath != "" {
		t.Fatal("cancelled job must not record an output path")
	}

	outputs, err := os.ReadDir(h.cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(outputs) != 0 {
		t.Fatalf("expected partial output removed, found %d entries", len(outputs))
	}
}

func TestVerificationFailurePreservesOriginal(t *testing.T) {
	h := newHarness(t, 1, successBody, func(cfg *config.Config) {
		cfg.Jobs.OriginalPolicy = "delete"
	})
	// Truncated output: probe reports far less than the source duration.
	writeScript(t, h.dir, "ffprobe", `cat <<'PROBE'
{"streams":[],"format":{"format_name":"matroska,webm","duration":"10","size":"100"}}
PROBE`)
	media := h.addMedia(t, "media-1")
	h.start(t)

	job, err := h.scheduler.Submit(context.Background(), media.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := h.waitForStatus(t, job.ID, queue.StatusFailed)
	if !strings.Contains(done.ErrorMessage, "verification") {
		t.Fatalf("expected verification error detail, got %q", done.ErrorMessage)
	}
	content, err := os.ReadFile(media.Path)
	if err != nil {
		t.Fatalf("original missing despite delete policy and failed verification: %v", err)
	}
	if string(content) != "original bytes" {
		t.Fatal("original content changed")
	}
	if done.OutputPath != "" {
		t.Fatal("failed job must not record an output path")
	}
}

func TestReorderOnlyAffectsQueuedJobs(t *testing.T) {
	h := newHarness(t, 1, slowSuccessBody)
	first := h.addMedia(t, "media-1")
	second := h.addMedia(t, "media-2")
	third := h.addMedia(t, "media-3")
	h.start(t)

	jobA, err := h.scheduler.Submit(context.Background(), first.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.waitForStatus(t, jobA.ID, queue.StatusRunning)

	jobB, err := h.scheduler.Submit(context.Background(), second.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	jobC, err := h.scheduler.Submit(context.Background(), third.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Promote the later submission ahead of the earlier one.
	if _, err := h.scheduler.Reorder(context.Background(), jobC.ID, 10); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	// Running jobs cannot be reordered.
	if _, err := h.scheduler.Reorder(context.Background(), jobA.ID, 99); err == nil {
		t.Fatal("expected reorder of running job to fail")
	}
	running, err := h.jobs.GetByID(context.Background(), jobA.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if running.Status != queue.StatusRunning {
		t.Fatalf("reorder attempt changed running job status to %s", running.Status)
	}

	h.waitForStatus(t, jobC.ID, queue.StatusCompleted)
	b, err := h.jobs.GetByID(context.Background(), jobB.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status == queue.StatusCompleted {
		c, _ := h.jobs.GetByID(context.Background(), jobC.ID)
		if c.StartedAt != nil && b.StartedAt != nil && b.StartedAt.Before(*c.StartedAt) {
			t.Fatal("reordered job should have started before the lower-priority one")
		}
	}
}

func TestRetryOnlyAppliesToFailedJobs(t *testing.T) {
	h := newHarness(t, 1, successBody)
	media := h.addMedia(t, "media-1")
	h.start(t)

	job, err := h.scheduler.Submit(context.Background(), media.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done := h.waitForStatus(t, job.ID, queue.StatusCompleted)

	if _, err := h.scheduler.Retry(context.Background(), done.ID); err == nil {
		t.Fatal("expected retry of completed job to fail")
	}
}

func TestEventFeedCarriesTransitions(t *testing.T) {
	h := newHarness(t, 1, successBody)
	media := h.addMedia(t, "media-1")
	h.start(t)

	events, cancel := h.scheduler.Subscribe()
	defer cancel()

	job, err := h.scheduler.Submit(context.Background(), media.ID, "sw", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.waitForStatus(t, job.ID, queue.StatusCompleted)

	seen := make(map[queue.Status]bool)
	lastProgress := -1.0
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case event, ok := <-events:
			if !ok {
				break collect
			}
			if event.JobID != job.ID {
				continue
			}
			seen[event.Status] = true
			if event.Status == queue.StatusRunning {
				if event.Progress < lastProgress {
					t.Fatalf("event progress decreased: %f after %f", event.Progress, lastProgress)
				}
				lastProgress = event.Progress
			}
			if event.Status == queue.StatusCompleted {
				break collect
			}
		case <-deadline:
			break collect
		}
	}

	for _, want := range []queue.Status{queue.StatusQueued, queue.StatusRunning, queue.StatusCompleted} {
		if !seen[want] {
			t.Fatalf("expected %s event, saw %v", want, seen)
		}
	}
}
