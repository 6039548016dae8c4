// Package audioedit plans and performs ad removal on downloaded episode
// audio. The content to keep is computed as the complement of the detected ad
// intervals, then reassembled with stream copies so the original encoding is
// preserved.
package audioedit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"podscrub/internal/analysis"
	"podscrub/internal/fileutil"
	"podscrub/internal/logging"
	"podscrub/internal/services"
)

// minKeepSeconds drops complement slivers too short to be real content;
// anything under a second is edit-boundary noise.
const minKeepSeconds = 1.0

// AudioSegment is a span of the source audio expressed as a start offset and
// a duration, matching the arguments ffmpeg extraction takes.
type AudioSegment struct {
	Start    float64
	Duration float64
}

// End returns the segment's end offset.
func (s AudioSegment) End() float64 {
	return s.Start + s.Duration
}

// Cutter is the subset of the ffmpeg tool the editor needs.
type Cutter interface {
	ExtractSegment(ctx context.Context, input, output string, start, duration float64) error
	Concatenate(ctx context.Context, inputs []string, output string) error
}

// KeepSegments computes the complement of the ad intervals over
// [0, totalDuration). Detections are clamped to the audio bounds and walked
// in start order; gaps shorter than minKeepSeconds are discarded. When
// nothing survives, services.ErrNoContentRemaining is returned so callers can
// refuse to produce an empty episode.
func KeepSegments(ads []analysis.AdDetection, totalDuration float64) ([]AudioSegment, error) {
	if totalDuration <= 0 {
		return nil, fmt.Errorf("%w: non-positive audio duration %v", services.ErrValidation, totalDuration)
	}

	sorted := make([]analysis.AdDetection, len(ads))
	copy(sorted, ads)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	var keep []AudioSegment
	cursor := 0.0
	for _, ad := range sorted {
		start := clamp(ad.StartTime, 0, totalDuration)
		end := clamp(ad.EndTime, 0, totalDuration)
		if end <= cursor {
			continue
		}
		if start-cursor >= minKeepSeconds {
			keep = append(keep, AudioSegment{Start: cursor, Duration: start - cursor})
		}
		cursor = end
	}
	if totalDuration-cursor >= minKeepSeconds {
		keep = append(keep, AudioSegment{Start: cursor, Duration: totalDuration - cursor})
	}

	if len(keep) == 0 {
		return nil, services.ErrNoContentRemaining
	}
	return keep, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Editor performs ad removal using an external cutter.
type Editor struct {
	cutter Cutter
	logger *slog.Logger
}

// NewEditor constructs an Editor. A nil logger is replaced with a no-op one.
func NewEditor(cutter Cutter, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Editor{cutter: cutter, logger: logger}
}

// RemoveAds writes input minus the ad intervals to output. With no detections
// the input is copied through untouched so downstream stages see a file
// either way.
func (e *Editor) RemoveAds(ctx context.Context, input, output string, ads []analysis.AdDetection, totalDuration float64) error {
	if len(ads) == 0 {
		e.logger.Info("no ads detected, copying audio unchanged", logging.String("output", filepath.Base(output)))
		return fileutil.CopyFile(input, output)
	}

	keep, err := KeepSegments(ads, totalDuration)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp(filepath.Dir(output), "segments-")
	if err != nil {
		return fmt.Errorf("create segment dir: %w", err)
	}
	defer func() {
		_ = fileutil.RemoveAll(workDir)
	}()

	ext := filepath.Ext(input)
	parts := make([]string, 0, len(keep))
	for i, segment := range keep {
		part := filepath.Join(workDir, fmt.Sprintf("keep_%03d%s", i, ext))
		if err := e.cutter.ExtractSegment(ctx, input, part, segment.Start, segment.Duration); err != nil {
			return fmt.Errorf("extract keep segment %d (%.1fs-%.1fs): %w", i, segment.Start, segment.End(), err)
		}
		parts = append(parts, part)
	}

	if len(parts) == 1 {
		return fileutil.MoveFile(parts[0], output)
	}
	if err := e.cutter.Concatenate(ctx, parts, output); err != nil {
		return fmt.Errorf("concatenate %d segments: %w", len(parts), err)
	}
	return nil
}

// ExtractAdSegments cuts each detected ad into its own file under dir,
// returning the paths that were produced. Ads shorter than minKeepSeconds
// are skipped, the same floor the keep-segment walk applies. A single
// segment failing to extract is logged and skipped; context cancellation
// aborts the whole operation and removes anything already written.
func (e *Editor) ExtractAdSegments(ctx context.Context, input, dir string, ads []analysis.AdDetection) ([]string, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create ad segment dir: %w", err)
	}

	ext := filepath.Ext(input)
	var extracted []string
	for i, ad := range ads {
		duration := ad.EndTime - ad.StartTime
		if duration < minKeepSeconds {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("ad_%03d%s", i, ext))
		if err := e.cutter.ExtractSegment(ctx, input, path, ad.StartTime, duration); err != nil {
			if ctx.Err() != nil {
				for _, p := range extracted {
					_ = os.Remove(p)
				}
				return nil, fmt.Errorf("extract ad segments: %w", ctx.Err())
			}
			e.logger.Warn("skipping ad segment that failed to extract",
				logging.Int("segment", i),
				logging.Float64("start", ad.StartTime),
				logging.Error(err))
			continue
		}
		extracted = append(extracted, path)
	}
	return extracted, nil
}
