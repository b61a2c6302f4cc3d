package ffprobe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func setProbeHelper(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestInspectHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "INSPECT_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestInspectHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("INSPECT_HELPER_MODE") {
	case "valid":
		fmt.Print(`{"streams":[
  {"index":0,"codec_name":"h264","codec_type":"video","width":1920,"height":1080},
  {"index":1,"codec_name":"aac","codec_type":"audio","channels":2},
  {"index":2,"codec_name":"mjpeg","codec_type":"video"}
],"format":{"format_name":"matroska,webm","duration":"123.5","size":"2048","bit_rate":"800000"}}`)
		os.Exit(0)
	case "garbage":
		fmt.Print("not json at all")
		os.Exit(0)
	case "fail":
		fmt.Fprint(os.Stderr, "No such file or directory")
		os.Exit(1)
	}
	os.Exit(2)
}

func TestInspectParsesStreams(t *testing.T) {
	setProbeHelper(t, "valid")

	result, err := Inspect(context.Background(), "ffprobe", "/media/in.mkv")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	video, ok := result.VideoStream()
	if !ok || video.CodecName != "h264" || video.Height != 1080 {
		t.Fatalf("unexpected video stream %+v", video)
	}
	audio, ok := result.AudioStream()
	if !ok || audio.CodecName != "aac" {
		t.Fatalf("unexpected audio stream %+v", audio)
	}
	if result.VideoStreamCount() != 2 {
		t.Fatalf("expected 2 video streams, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 123.5 {
		t.Fatalf("unexpected duration %f", result.DurationSeconds())
	}
	if result.SizeBytes() != 2048 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
	if result.BitRate() != 800000 {
		t.Fatalf("unexpected bitrate %d", result.BitRate())
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectSurfacesProcessFailure(t *testing.T) {
	setProbeHelper(t, "fail")

	_, err := Inspect(context.Background(), "ffprobe", "/media/missing.mkv")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestInspectRejectsGarbageOutput(t *testing.T) {
	setProbeHelper(t, "garbage")

	_, err := Inspect(context.Background(), "ffprobe", "/media/in.mkv")
	if err == nil || !strings.Contains(err.Error(), "ffprobe parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestNumericAccessorsTolerateMissingFields(t *testing.T) {
	var result Result
	if result.DurationSeconds() != 0 || result.SizeBytes() != 0 || result.BitRate() != 0 {
		t.Fatal("empty format must map to zero values")
	}
	result.Format.Duration = "garbage"
	if result.DurationSeconds() != 0 {
		t.Fatal("unparseable duration must map to zero")
	}
}
