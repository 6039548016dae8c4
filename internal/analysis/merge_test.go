package analysis_test

import (
	"math"
	"testing"

	"podscrub/internal/analysis"
)

func det(start, end, confidence float64, source analysis.DetectionSource) analysis.AdDetection {
	return analysis.AdDetection{
		StartTime:  start,
		EndTime:    end,
		Confidence: confidence,
		AdType:     analysis.AdTypeMidRoll,
		Source:     source,
	}
}

func TestMergeDetectionsCollapsesSmallGaps(t *testing.T) {
	audio := []analysis.AdDetection{
		det(10, 15, 0.8, analysis.SourceAudio),
		det(16, 20, 0.9, analysis.SourceAudio),
	}

	merged := analysis.MergeDetections(audio, nil)
	if len(merged) != 1 {
		t.Fatalf("expected one merged detection, got %d", len(merged))
	}
	if merged[0].StartTime != 10 || merged[0].EndTime != 20 {
		t.Fatalf("expected interval (10,20), got (%v,%v)", merged[0].StartTime, merged[0].EndTime)
	}
	if merged[0].Confidence != 0.9 {
		t.Fatalf("expected max confidence 0.9, got %v", merged[0].Confidence)
	}
}

func TestMergeDetectionsKeepsDistantIntervals(t *testing.T) {
	audio := []analysis.AdDetection{
		det(10, 15, 0.8, analysis.SourceAudio),
		det(100, 105, 0.7, analysis.SourceAudio),
	}

	merged := analysis.MergeDetections(audio, nil)
	if len(merged) != 2 {
		t.Fatalf("expected two detections, got %d", len(merged))
	}
	if merged[0].StartTime != 10 || merged[1].StartTime != 100 {
		t.Fatalf("unexpected ordering: %+v", merged)
	}
}

func TestMergeDetectionsDropsRedundantTextDetections(t *testing.T) {
	audio := []analysis.AdDetection{det(30, 60, 0.9, analysis.SourceAudio)}
	text := []analysis.AdDetection{
		det(32, 58, 0.6, analysis.SourceText),   // overlaps 26s, redundant
		det(200, 230, 0.7, analysis.SourceText), // disjoint, kept
	}

	merged := analysis.MergeDetections(audio, text)
	if len(merged) != 2 {
		t.Fatalf("expected two detections, got %d: %+v", len(merged), merged)
	}
	if merged[0].StartTime != 30 || merged[0].EndTime != 60 {
		t.Fatalf("audio detection should survive unchanged: %+v", merged[0])
	}
	if merged[1].Source != analysis.SourceText {
		t.Fatalf("disjoint text detection should be kept: %+v", merged[1])
	}
}

func TestMergeDetectionsKeepsTextWithSmallOverlap(t *testing.T) {
	audio := []analysis.AdDetection{det(30, 60, 0.9, analysis.SourceAudio)}
	// 4s overlap is under the dedup threshold, so the text detection extends
	// the audio one instead of being discarded.
	text := []analysis.AdDetection{det(56, 80, 0.6, analysis.SourceText)}

	merged := analysis.MergeDetections(audio, text)
	if len(merged) != 1 {
		t.Fatalf("expected one merged detection, got %d", len(merged))
	}
	if merged[0].StartTime != 30 || merged[0].EndTime != 80 {
		t.Fatalf("expected interval (30,80), got (%v,%v)", merged[0].StartTime, merged[0].EndTime)
	}
}

func TestMergeDetectionsIdempotent(t *testing.T) {
	audio := []analysis.AdDetection{
		det(10, 20, 0.8, analysis.SourceAudio),
		det(50, 70, 0.9, analysis.SourceAudio),
		det(200, 210, 0.5, analysis.SourceAudio),
	}

	once := analysis.MergeDetections(audio, nil)
	twice := analysis.MergeDetections(once, nil)
	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("merge not idempotent at %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestMergeDetectionsOrderIndependent(t *testing.T) {
	a := det(10, 15, 0.8, analysis.SourceAudio)
	b := det(16, 20, 0.9, analysis.SourceAudio)
	c := det(100, 110, 0.4, analysis.SourceAudio)

	forward := analysis.MergeDetections([]analysis.AdDetection{a, b, c}, nil)
	reversed := analysis.MergeDetections([]analysis.AdDetection{c, b, a}, nil)

	if len(forward) != len(reversed) {
		t.Fatalf("permutations diverge: %d vs %d", len(forward), len(reversed))
	}
	for i := range forward {
		if math.Abs(forward[i].StartTime-reversed[i].StartTime) > 1e-9 ||
			math.Abs(forward[i].EndTime-reversed[i].EndTime) > 1e-9 {
			t.Fatalf("permutations diverge at %d: %+v vs %+v", i, forward[i], reversed[i])
		}
	}
}

func TestMergeDetectionsDescriptions(t *testing.T) {
	a := det(10, 15, 0.8, analysis.SourceAudio)
	a.Description = "Squarespace read"
	b := det(14, 22, 0.9, analysis.SourceAudio)

	merged := analysis.MergeDetections([]analysis.AdDetection{a, b}, nil)
	if len(merged) != 1 {
		t.Fatalf("expected single detection, got %d", len(merged))
	}
	if merged[0].Description != "Squarespace read" {
		t.Fatalf("expected non-empty description to win, got %q", merged[0].Description)
	}
}

func TestMergeDetectionsEmptyInputs(t *testing.T) {
	if got := analysis.MergeDetections(nil, nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
