package encoding

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"squish/internal/hwcaps"
	"squish/internal/library"
	"squish/internal/presets"
	"squish/internal/queue"
	"squish/internal/services"
)

// Plan is a fully resolved ffmpeg invocation for one encode attempt. Building
// a plan is pure: no I/O, no clock, deterministic for the same inputs.
type Plan struct {
	InputPath  string
	OutputPath string
	Backend    hwcaps.Backend
	VideoCopy  bool
	Args       []string
}

// ChosenPath reports the encode path for job records and the event feed: the
// hardware backend id, or "software" for software encodes and stream copies.
func (p Plan) ChosenPath() string {
	if p.Backend != "" {
		return string(p.Backend)
	}
	return queue.PathSoftware
}

// softwareEncoders maps target codec families to their software encoders.
var softwareEncoders = map[string]string{
	"h264": "libx264",
	"hevc": "libx265",
	"vp9":  "libvpx-vp9",
	"av1":  "libaom-av1",
}

// audioEncoders maps target audio codec names to ffmpeg encoder names.
var audioEncoders = map[string]string{
	"aac":     "aac",
	"flac":    "flac",
	"opus":    "libopus",
	"libopus": "libopus",
}

// BuildPlan resolves the encode path for a media item against a preset and a
// capability snapshot. Decision order: stream copy when the source already
// satisfies the preset, then a working hardware backend when the preset
// allows one, then software. forceSoftware pins the software path and is set
// by the scheduler when retrying after a hardware process failure.
func BuildPlan(media *library.MediaItem, preset presets.Preset, caps hwcaps.Snapshot, outputDir string, forceSoftware bool) (Plan, error) {
	software, ok := softwareEncoders[preset.Codec]
	if !ok {
		return Plan{}, services.Wrap(services.ErrUnsupportedCodec, "encoding", "build", preset.Codec, nil)
	}

	plan := Plan{
		InputPath:  media.Path,
		OutputPath: outputPath(media.Path, preset, outputDir),
	}

	ceiling := presets.CeilingHeight(preset.Scale)
	needsScale := ceiling > 0 && media.Height > ceiling

	if media.VideoCodec == preset.Codec && !needsScale {
		plan.VideoCopy = true
		plan.Args = assembleArgs(plan, preset, nil, media)
		return plan, nil
	}

	if preset.Hardware != presets.HardwareDisabled && !forceSoftware {
		if backend, ok := caps.FirstWorking(preset.Codec); ok {
			plan.Backend = backend
			encoder, _ := hwcaps.EncoderFor(backend, preset.Codec)
			plan.Args = assembleArgs(plan, preset, videoArgs(encoder, backend, preset, needsScale), media)
			return plan, nil
		}
		if preset.Hardware == presets.HardwareRequired {
			return Plan{}, services.Wrap(services.ErrHardwareUnavailable, "encoding", "build",
				fmt.Sprintf("no working backend for %s and hardware is required", preset.Codec), nil)
		}
	}

	plan.Args = assembleArgs(plan, preset, videoArgs(software, "", preset, needsScale), media)
	return plan, nil
}

// assembleArgs lays out the invocation in ffmpeg's required order: globals,
// hardware device init, input, codec and filter options, progress reporting,
// output. Stream selection stays with ffmpeg's default best-stream rule: no
// -map flags, so extra audio tracks and subtitles are not carried over.
func assembleArgs(plan Plan, preset presets.Preset, video []string, media *library.MediaItem) []string {
	args := []string{"-hide_banner", "-y"}
	args = append(args, deviceInitArgs(plan.Backend)...)
	args = append(args, "-i", plan.InputPath)

	if plan.VideoCopy {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, video...)
	}

	args = append(args, audioArgs(preset, media)...)
	args = append(args, "-progress", "pipe:1", "-nostats")
	args = append(args, plan.OutputPath)
	return args
}

func deviceInitArgs(backend hwcaps.Backend) []string {
	switch backend {
	case hwcaps.BackendVAAPI:
		return []string{"-init_hw_device", "vaapi=va:" + defaultRenderDevice, "-filter_hw_device", "va"}
	case hwcaps.BackendQSV:
		return []string{"-init_hw_device", "qsv=qs:hw", "-filter_hw_device", "qs"}
	default:
		return nil
	}
}

// defaultRenderDevice is substituted into vaapi plans; the scheduler rewrites
// it to the configured device before running.
const defaultRenderDevice = "/dev/dri/renderD128"

// ApplyDevice replaces the default vaapi render device with the configured
// one. Kept out of BuildPlan so plan construction stays config-free.
func (p *Plan) ApplyDevice(device string) {
	if device == "" || device == defaultRenderDevice {
		return
	}
	for i, arg := range p.Args {
		if arg == "vaapi=va:"+defaultRenderDevice {
			p.Args[i] = "vaapi=va:" + device
		}
	}
}

func videoArgs(encoder string, backend hwcaps.Backend, preset presets.Preset, needsScale bool) []string {
	args := []string{"-c:v", encoder}

	if needsScale {
		width, height := presets.ParseResolution(preset.Scale)
		switch backend {
		case hwcaps.BackendVAAPI:
			args = append(args, "-vf", fmt.Sprintf("format=nv12,hwupload,scale_vaapi=w=%d:h=%d", width, height))
		case hwcaps.BackendQSV:
			args = append(args, "-vf", fmt.Sprintf("format=nv12,hwupload=extra_hw_frames=64,scale_qsv=w=%d:h=%d", width, height))
		default: // nvenc and software encoders take system-memory frames
			args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", width, height))
		}
	}

	if preset.Bitrate != "" {
		args = append(args, "-b:v", preset.Bitrate)
	}
	if preset.CRF != nil {
		args = append(args, qualityFlag(backend), strconv.Itoa(*preset.CRF))
	}
	return args
}

// qualityFlag maps a constant-quality factor to each encoder's native
// control. The numeric scales are close enough that presets carry one value.
func qualityFlag(backend hwcaps.Backend) string {
	switch backend {
	case hwcaps.BackendVAAPI:
		return "-qp"
	case hwcaps.BackendNVENC:
		return "-cq"
	case hwcaps.BackendQSV:
		return "-global_quality"
	default:
		return "-crf"
	}
}

func audioArgs(preset presets.Preset, media *library.MediaItem) []string {
	target := preset.AudioCodec
	if target == "copy" || sameAudioCodec(media.AudioCodec, target) {
		return []string{"-c:a", "copy"}
	}

	encoder, ok := audioEncoders[target]
	if !ok {
		encoder = target
	}
	args := []string{"-c:a", encoder}
	if preset.AudioBitrate != "" {
		args = append(args, "-b:a", preset.AudioBitrate)
	}
	// Opus rejects some source channel layouts, so downmix to stereo.
	if target == "opus" || target == "libopus" {
		args = append(args, "-ac", "2")
	}
	return args
}

func sameAudioCodec(source, target string) bool {
	if source == "" {
		return false
	}
	if target == "libopus" {
		target = "opus"
	}
	return source == target
}

// outputPath derives the output file location from the source name and the
// preset's container. A name collision with the input gets the preset name
// spliced in so a copy plan can never truncate its own source.
func outputPath(inputPath string, preset presets.Preset, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	out := filepath.Join(outputDir, stem+preset.Container)
	if out == inputPath {
		out = filepath.Join(outputDir, stem+"."+preset.Name+preset.Container)
	}
	return out
}
