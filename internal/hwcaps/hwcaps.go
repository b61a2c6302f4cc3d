package hwcaps

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"squish/internal/config"
	"squish/internal/logging"
)

var commandContext = exec.CommandContext

// Backend identifies a hardware acceleration API.
type Backend string

const (
	BackendVAAPI Backend = "vaapi"
	BackendNVENC Backend = "nvenc"
	BackendQSV   Backend = "qsv"
)

// Backends lists every backend the detector probes, in probe order.
var Backends = []Backend{BackendVAAPI, BackendNVENC, BackendQSV}

// ParseBackend converts a stored string into a Backend.
func ParseBackend(value string) (Backend, bool) {
	switch Backend(strings.ToLower(strings.TrimSpace(value))) {
	case BackendVAAPI:
		return BackendVAAPI, true
	case BackendNVENC:
		return BackendNVENC, true
	case BackendQSV:
		return BackendQSV, true
	default:
		return "", false
	}
}

// Capability records the probe outcome for a single backend.
type Capability struct {
	Backend  Backend
	Device   string
	Working  bool
	Detail   string
	ProbedAt time.Time
}

// Snapshot is an immutable view of every backend's probe result. Callers hold
// a snapshot for the duration of one planning decision so the answer cannot
// change underneath them.
type Snapshot struct {
	Capabilities map[Backend]Capability
	ProbedAt     time.Time
}

// Working reports whether the named backend passed its test encode.
func (s Snapshot) Working(backend Backend) bool {
	return s.Capabilities[backend].Working
}

// FirstWorking returns the first probe-order backend that both works and has
// an encoder for the codec.
func (s Snapshot) FirstWorking(codec string) (Backend, bool) {
	for _, backend := range Backends {
		if !s.Working(backend) {
			continue
		}
		if _, ok := EncoderFor(backend, codec); ok {
			return backend, true
		}
	}
	return "", false
}

func (s Snapshot) stale(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(s.ProbedAt) > ttl
}

// encoders maps backend and source codec family to the ffmpeg encoder name.
var encoders = map[Backend]map[string]string{
	BackendVAAPI: {
		"h264": "h264_vaapi",
		"hevc": "hevc_vaapi",
		"vp9":  "vp9_vaapi",
		"av1":  "av1_vaapi",
	},
	BackendNVENC: {
		"h264": "h264_nvenc",
		"hevc": "hevc_nvenc",
		"av1":  "av1_nvenc",
	},
	BackendQSV: {
		"h264": "h264_qsv",
		"hevc": "hevc_qsv",
		"vp9":  "vp9_qsv",
		"av1":  "av1_qsv",
	},
}

// EncoderFor returns the ffmpeg encoder name for a codec on a backend.
func EncoderFor(backend Backend, codec string) (string, bool) {
	name, ok := encoders[backend][strings.ToLower(strings.TrimSpace(codec))]
	return name, ok
}

// probeTimeout bounds a single backend test encode. A healthy probe finishes
// in under two seconds; a wedged driver should not stall the daemon.
const probeTimeout = 15 * time.Second

const testSource = "testsrc=duration=1:size=1280x720:rate=30"

// Detector runs test encodes to establish which backends work, and serves
// cached snapshots until the TTL lapses or a refresh is forced.
type Detector struct {
	ffmpegBin string
	device    string
	ttl       time.Duration
	logger    *slog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewDetector constructs a Detector from daemon configuration.
func NewDetector(cfg *config.Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		ffmpegBin: cfg.Paths.FFmpegBin,
		device:    cfg.Hardware.Device,
		ttl:       time.Duration(cfg.Hardware.ProbeTTL) * time.Second,
		logger:    logger.With(logging.String(logging.FieldComponent, "hwcaps")),
	}
}

// Snapshot returns the cached capability snapshot, probing first if no probe
// has run yet or the cache has outlived its TTL.
func (d *Detector) Snapshot(ctx context.Context) Snapshot {
	d.mu.RLock()
	cached := d.snapshot
	d.mu.RUnlock()

	if cached != nil && !cached.stale(d.ttl) {
		return *cached
	}
	return d.Refresh(ctx)
}

// Cached returns the current snapshot without probing. The second return is
// false when no probe has completed yet.
func (d *Detector) Cached() (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.snapshot == nil {
		return Snapshot{}, false
	}
	return *d.snapshot, true
}

// Refresh probes every backend and atomically replaces the cached snapshot.
// Concurrent callers serialize; the second caller reuses the first's result
// when it is fresh enough.
func (d *Detector) Refresh(ctx context.Context) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.snapshot != nil && !d.snapshot.stale(d.ttl) && time.Since(d.snapshot.ProbedAt) < time.Second {
		return *d.snapshot
	}

	snapshot := d.probe(ctx)
	d.snapshot = &snapshot
	return snapshot
}

func (d *Detector) probe(ctx context.Context) Snapshot {
	snapshot := Snapshot{
		Capabilities: make(map[Backend]Capability, len(Backends)),
		ProbedAt:     time.Now().UTC(),
	}
	for _, backend := range Backends {
		capability := d.probeBackend(ctx, backend)
		snapshot.Capabilities[backend] = capability
		if capability.Working {
			d.logger.Info("hardware backend available",
				logging.String(logging.FieldBackend, string(backend)),
				logging.String("device", capability.Device),
			)
		} else {
			d.logger.Debug("hardware backend unavailable",
				logging.String(logging.FieldBackend, string(backend)),
				logging.String("detail", capability.Detail),
			)
		}
	}
	return snapshot
}

// probeBackend runs a one second synthetic encode through the backend. Any
// failure marks the backend not working with the last stderr line as detail.
func (d *Detector) probeBackend(ctx context.Context, backend Backend) Capability {
	capability := Capability{
		Backend:  backend,
		Device:   d.device,
		ProbedAt: time.Now().UTC(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := commandContext(probeCtx, d.ffmpegBin, probeArgs(backend, d.device)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		capability.Detail = probeFailureDetail(stderr.Bytes(), err)
		return capability
	}

	capability.Working = true
	return capability
}

func probeArgs(backend Backend, device string) []string {
	common := []string{"-hide_banner", "-v", "error"}
	switch backend {
	case BackendVAAPI:
		return append(common,
			"-init_hw_device", "vaapi=va:"+device,
			"-filter_hw_device", "va",
			"-f", "lavfi", "-i", testSource,
			"-vf", "format=nv12,hwupload",
			"-c:v", "h264_vaapi",
			"-t", "1", "-f", "null", "-",
		)
	case BackendQSV:
		return append(common,
			"-init_hw_device", "qsv=qs:hw",
			"-filter_hw_device", "qs",
			"-f", "lavfi", "-i", testSource,
			"-vf", "format=nv12,hwupload=extra_hw_frames=64",
			"-c:v", "h264_qsv",
			"-t", "1", "-f", "null", "-",
		)
	default: // nvenc needs no device init for a test encode
		return append(common,
			"-f", "lavfi", "-i", testSource,
			"-c:v", "h264_nvenc",
			"-t", "1", "-f", "null", "-",
		)
	}
}

func probeFailureDetail(stderr []byte, err error) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return err.Error()
}
