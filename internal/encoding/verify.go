package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"squish/internal/config"
	"squish/internal/library"
	"squish/internal/logging"
	"squish/internal/media/ffprobe"
	"squish/internal/services"
)

// Verifier checks encode output integrity before any destructive disposition
// of the original file may run.
type Verifier struct {
	ffprobeBin     string
	tolerancePct   float64
	toleranceFloor float64
	logger         *slog.Logger
}

// NewVerifier constructs a Verifier from daemon configuration.
func NewVerifier(cfg *config.Config, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Verifier{
		ffprobeBin:     cfg.Paths.FFprobeBin,
		tolerancePct:   float64(cfg.Workflow.VerifyDurationTolPct),
		toleranceFloor: float64(cfg.Workflow.VerifyDurationTolFloor),
		logger:         logger.With(logging.String(logging.FieldComponent, "verify")),
	}
}

// Verify re-probes the output file and checks container recognition,
// non-zero size, and duration within tolerance of the source. Both stream
// copy and re-encode preserve duration, so a large deviation means the
// output is truncated or corrupt. On failure the invalid output is deleted
// and the original is never touched.
func (v *Verifier) Verify(ctx context.Context, media *library.MediaItem, outputPath string) error {
	fail := func(operation, detail string, err error) error {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrVerification, "verify", operation, detail, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fail("stat", outputPath, err)
	}
	if info.Size() == 0 {
		return fail("stat", "output file is empty", nil)
	}

	result, err := ffprobe.Inspect(ctx, v.ffprobeBin, outputPath)
	if err != nil {
		return fail("probe", outputPath, err)
	}
	if strings.TrimSpace(result.Format.FormatName) == "" {
		return fail("probe", "container not recognized", nil)
	}

	duration := result.DurationSeconds()
	if duration <= 0 {
		return fail("duration", "output has zero duration", nil)
	}
	if media.Duration > 0 {
		tolerance := math.Max(v.toleranceFloor, media.Duration*v.tolerancePct/100)
		if deviation := math.Abs(duration - media.Duration); deviation > tolerance {
			return fail("duration",
				fmt.Sprintf("duration %.2fs deviates %.2fs from source %.2fs (tolerance %.2fs)",
					duration, deviation, media.Duration, tolerance), nil)
		}
	}

	v.logger.Info("output verified",
		logging.String("output", outputPath),
		logging.Float64("duration", duration),
		logging.Int64("size", info.Size()),
	)
	return nil
}
