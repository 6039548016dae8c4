package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks failures of subprocess invocations (ffmpeg, ffprobe).
	ErrExternalTool = errors.New("external tool error")
	// ErrSubprocessTimeout marks a media tool that exceeded its deadline and
	// was force-killed.
	ErrSubprocessTimeout = errors.New("subprocess timeout")
	// ErrProviderDegraded marks a non-fatal LLM provider failure; callers fall
	// back to earlier-stage output and continue.
	ErrProviderDegraded = errors.New("provider degraded")
	// ErrNoContentRemaining marks an ad-interval complement that left no audio
	// to keep, distinguishing bad detections from infrastructure errors.
	ErrNoContentRemaining = errors.New("no valid content remains")
	// ErrValidation marks bad stage inputs.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatalStage reports whether a stage error should fail the job. Provider
// degradation is the only recoverable class; the orchestrator falls back to
// audio-only detections and continues.
func IsFatalStage(err error) bool {
	return err != nil && !errors.Is(err, ErrProviderDegraded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
