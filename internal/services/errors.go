package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProbe marks metadata extraction failures; the job cannot be built.
	ErrProbe = errors.New("probe error")
	// ErrUnsupportedCodec marks a preset naming a codec with no encoder mapping.
	ErrUnsupportedCodec = errors.New("unsupported codec")
	// ErrHardwareUnavailable marks a hardware-path failure eligible for
	// software fallback.
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	// ErrEncodeProcess marks an abnormal encoder exit after fallback was
	// exhausted. Retryable up to the configured bound.
	ErrEncodeProcess = errors.New("encode process error")
	// ErrVerification marks output that failed integrity checks.
	ErrVerification = errors.New("verification error")
	// ErrCancelled marks user-initiated cancellation; not a fault.
	ErrCancelled = errors.New("cancelled")
	// ErrTimeout marks a deadline exceeded during an encode attempt.
	ErrTimeout = errors.New("timeout")
	// ErrConfiguration marks operator configuration mistakes.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrEncodeProcess
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failed attempt may be re-queued, subject to the
// configured retry bound. Configuration mistakes, verification failures, and
// cancellations are never retried automatically.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUnsupportedCodec),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrProbe),
		errors.Is(err, ErrVerification),
		errors.Is(err, ErrCancelled):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
