package analysis

import (
	"sort"
	"strings"
)

// Merge thresholds in seconds. Two detections whose gap is within
// mergeGraceSeconds are treated as one ad read split by the detector; a text
// detection overlapping an audio detection by more than dedupOverlapSeconds
// restates what the audio detector already found.
const (
	mergeGraceSeconds   = 5.0
	dedupOverlapSeconds = 5.0
)

// MergeDetections reconciles the audio-based and text-based detectors into a
// single sorted, non-overlapping ad list.
//
// Text detections are dropped when they overlap any audio detection by more
// than the dedup threshold; the survivors are unioned with the audio set and
// collapsed. Merging keeps the maximum confidence of its members rather than
// an average, biasing toward not missing a real ad at the cost of
// over-merging boundaries.
func MergeDetections(audio, text []AdDetection) []AdDetection {
	candidates := make([]AdDetection, 0, len(audio)+len(text))
	candidates = append(candidates, audio...)
	for _, det := range text {
		if overlapsAny(det, audio) {
			continue
		}
		candidates = append(candidates, det)
	}
	return mergeOverlapping(candidates)
}

func overlapsAny(det AdDetection, existing []AdDetection) bool {
	for _, other := range existing {
		if det.Overlap(other) > dedupOverlapSeconds {
			return true
		}
	}
	return false
}

// mergeOverlapping collapses overlapping or near-adjacent intervals in a
// single left-to-right scan over the start-sorted input.
func mergeOverlapping(detections []AdDetection) []AdDetection {
	if len(detections) == 0 {
		return nil
	}

	sorted := make([]AdDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartTime != sorted[j].StartTime {
			return sorted[i].StartTime < sorted[j].StartTime
		}
		return sorted[i].EndTime < sorted[j].EndTime
	})

	merged := make([]AdDetection, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.StartTime <= current.EndTime+mergeGraceSeconds {
			current = combine(current, next)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

func combine(current, next AdDetection) AdDetection {
	if next.EndTime > current.EndTime {
		current.EndTime = next.EndTime
	}
	if next.Confidence > current.Confidence {
		current.Confidence = next.Confidence
	}
	current.Description = combineDescriptions(current.Description, next.Description)
	if current.Source != next.Source {
		// A cross-source merge means both detectors saw part of this span.
		current.Source = SourceAudio
	}
	return current
}

func combineDescriptions(first, second string) string {
	first = strings.TrimSpace(first)
	second = strings.TrimSpace(second)
	switch {
	case first == "":
		return second
	case second == "", strings.EqualFold(first, second):
		return first
	default:
		return first + "; " + second
	}
}
