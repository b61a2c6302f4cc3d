package encoding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"squish/internal/config"
	"squish/internal/logging"
	"squish/internal/services"
)

var commandContext = exec.CommandContext

// Runner launches and supervises ffmpeg processes for encode plans.
type Runner struct {
	ffmpegBin     string
	device        string
	writeInterval time.Duration
	logger        *slog.Logger
}

// NewRunner constructs a Runner from daemon configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		ffmpegBin:     cfg.Paths.FFmpegBin,
		device:        cfg.Hardware.Device,
		writeInterval: time.Duration(cfg.Workflow.ProgressWriteInterval) * time.Millisecond,
		logger:        logger.With(logging.String(logging.FieldComponent, "encoding")),
	}
}

// Process owns one live ffmpeg child for the duration of an encode attempt.
// The owning worker holds it from Start to Wait; nothing else touches the
// child directly.
type Process struct {
	plan       Plan
	ctx        context.Context
	cmd        *exec.Cmd
	tail       *tailBuffer
	readerDone chan struct{}
	ended      bool

	mu     sync.Mutex
	paused bool
}

// Start spawns ffmpeg for the plan in its own process group and begins
// reading its progress stream. Progress callbacks are coalesced to the
// configured write interval and are strictly ordered; reported fractions
// never decrease.
func (r *Runner) Start(ctx context.Context, plan Plan, sourceDuration float64, onProgress func(float64)) (*Process, error) {
	plan.ApplyDevice(r.device)

	proc := &Process{
		plan:       plan,
		ctx:        ctx,
		tail:       newTailBuffer(),
		readerDone: make(chan struct{}),
	}

	cmd := commandContext(ctx, r.ffmpegBin, plan.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = proc.tail
	cmd.Cancel = func() error {
		return proc.signalGroup(unix.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrEncodeProcess, "encoding", "start", r.ffmpegBin, err)
	}
	proc.cmd = cmd

	r.logger.Info("encode process started",
		logging.String("input", plan.InputPath),
		logging.String("output", plan.OutputPath),
		logging.String(logging.FieldBackend, plan.ChosenPath()),
		logging.Bool("video_copy", plan.VideoCopy),
	)

	parser := newProgressParser(sourceDuration)
	interval := r.writeInterval
	go func() {
		defer close(proc.readerDone)
		scanner := bufio.NewScanner(stdout)
		var lastEmit time.Time
		for scanner.Scan() {
			fraction, changed := parser.consume(scanner.Text())
			if !changed || onProgress == nil {
				continue
			}
			// Coalesce writes; the final marker always goes through.
			if fraction < 1 && time.Since(lastEmit) < interval {
				continue
			}
			lastEmit = time.Now()
			onProgress(fraction)
		}
		proc.ended = parser.Ended()
	}()

	return proc, nil
}

// Pause suspends the process group. The job keeps its concurrency slot.
func (p *Process) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return nil
	}
	if err := p.signalGroup(unix.SIGSTOP); err != nil {
		return fmt.Errorf("pause encode process: %w", err)
	}
	p.paused = true
	return nil
}

// Resume continues a suspended process group.
func (p *Process) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return nil
	}
	if err := p.signalGroup(unix.SIGCONT); err != nil {
		return fmt.Errorf("resume encode process: %w", err)
	}
	p.paused = false
	return nil
}

// Wait blocks until the process exits and the progress stream is drained.
// On any failure the partial output file is removed before the error is
// returned, so no failed attempt ever leaves output behind. Cancellation and
// deadline expiry surface as their own error kinds; everything else is an
// encode process failure carrying the stderr tail.
func (p *Process) Wait() error {
	<-p.readerDone

	// A paused group never exits; let the kill signal through first.
	if p.ctx.Err() != nil {
		p.mu.Lock()
		if p.paused {
			_ = p.signalGroup(unix.SIGCONT)
			p.paused = false
		}
		p.mu.Unlock()
	}

	waitErr := p.cmd.Wait()
	ctxErr := p.ctx.Err()
	if waitErr == nil && ctxErr == nil {
		return nil
	}

	p.removePartialOutput()

	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "encoding", "run", "encode deadline exceeded", waitErr)
	case ctxErr != nil:
		return services.Wrap(services.ErrCancelled, "encoding", "run", "encode cancelled", nil)
	default:
		return services.Wrap(services.ErrEncodeProcess, "encoding", "run", p.tail.Tail(), waitErr)
	}
}

// HardwareAttempt reports whether this attempt ran on a hardware backend,
// which makes a process failure eligible for automatic software fallback.
func (p *Process) HardwareAttempt() bool {
	return p.plan.Backend != ""
}

func (p *Process) signalGroup(sig unix.Signal) error {
	if p.cmd == nil || p.cmd.Process == nil {
		return errors.New("process not started")
	}
	return unix.Kill(-p.cmd.Process.Pid, sig)
}

func (p *Process) removePartialOutput() {
	_ = os.Remove(p.plan.OutputPath)
}

// tailBuffer retains the last few kilobytes of stderr for diagnostics.
type tailBuffer struct {
	mu   sync.Mutex
	data []byte
}

const tailLimit = 4096

func newTailBuffer() *tailBuffer {
	return &tailBuffer{}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if len(b.data) > tailLimit {
		b.data = append(b.data[:0], b.data[len(b.data)-tailLimit:]...)
	}
	return len(p), nil
}

// Tail returns the retained stderr text.
func (b *tailBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
