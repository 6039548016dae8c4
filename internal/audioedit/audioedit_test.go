package audioedit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"podscrub/internal/analysis"
	"podscrub/internal/services"
)

func TestKeepSegmentsComplement(t *testing.T) {
	ads := []analysis.AdDetection{
		{StartTime: 10, EndTime: 15},
		{StartTime: 100, EndTime: 105},
	}

	keep, err := KeepSegments(ads, 200)
	if err != nil {
		t.Fatalf("KeepSegments: %v", err)
	}

	want := []AudioSegment{
		{Start: 0, Duration: 10},
		{Start: 15, Duration: 85},
		{Start: 105, Duration: 95},
	}
	if len(keep) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(keep), keep)
	}
	for i := range want {
		if !almostEqual(keep[i].Start, want[i].Start) || !almostEqual(keep[i].Duration, want[i].Duration) {
			t.Errorf("segment %d: got %+v, want %+v", i, keep[i], want[i])
		}
	}
}

func TestKeepSegmentsDropsShortSlivers(t *testing.T) {
	// 0.5s gap between the ads must not become a keep segment.
	ads := []analysis.AdDetection{
		{StartTime: 0, EndTime: 50},
		{StartTime: 50.5, EndTime: 100},
	}

	keep, err := KeepSegments(ads, 120)
	if err != nil {
		t.Fatalf("KeepSegments: %v", err)
	}
	if len(keep) != 1 {
		t.Fatalf("expected one segment, got %+v", keep)
	}
	if !almostEqual(keep[0].Start, 100) || !almostEqual(keep[0].Duration, 20) {
		t.Errorf("unexpected segment %+v", keep[0])
	}
}

func TestKeepSegmentsNoContentRemaining(t *testing.T) {
	ads := []analysis.AdDetection{{StartTime: 0, EndTime: 300}}

	_, err := KeepSegments(ads, 300)
	if !errors.Is(err, services.ErrNoContentRemaining) {
		t.Fatalf("expected ErrNoContentRemaining, got %v", err)
	}
}

func TestKeepSegmentsClampsOutOfBoundsDetections(t *testing.T) {
	ads := []analysis.AdDetection{{StartTime: -5, EndTime: 10}, {StartTime: 290, EndTime: 400}}

	keep, err := KeepSegments(ads, 300)
	if err != nil {
		t.Fatalf("KeepSegments: %v", err)
	}
	if len(keep) != 1 {
		t.Fatalf("expected one segment, got %+v", keep)
	}
	if !almostEqual(keep[0].Start, 10) || !almostEqual(keep[0].Duration, 280) {
		t.Errorf("unexpected segment %+v", keep[0])
	}
}

func TestKeepSegmentsRejectsBadDuration(t *testing.T) {
	if _, err := KeepSegments(nil, 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

type fakeCutter struct {
	extracts    []AudioSegment
	failExtract map[int]error
	concatInput []string
}

func (f *fakeCutter) ExtractSegment(_ context.Context, _, output string, start, duration float64) error {
	call := len(f.extracts)
	f.extracts = append(f.extracts, AudioSegment{Start: start, Duration: duration})
	if err, ok := f.failExtract[call]; ok {
		return err
	}
	return os.WriteFile(output, []byte(fmt.Sprintf("segment %v+%v", start, duration)), 0o644)
}

func (f *fakeCutter) Concatenate(_ context.Context, inputs []string, output string) error {
	f.concatInput = append([]string(nil), inputs...)
	return os.WriteFile(output, []byte("joined"), 0o644)
}

func TestRemoveAdsCopiesUnchangedWithoutDetections(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	output := filepath.Join(dir, "clean.mp3")
	if err := os.WriteFile(input, []byte("original audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	cutter := &fakeCutter{}
	editor := NewEditor(cutter, nil)
	if err := editor.RemoveAds(context.Background(), input, output, nil, 1800); err != nil {
		t.Fatalf("RemoveAds: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original audio" {
		t.Fatalf("expected verbatim copy, got %q", got)
	}
	if len(cutter.extracts) != 0 {
		t.Error("cutter should not run when there are no detections")
	}
}

func TestRemoveAdsExtractsAndConcatenates(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	output := filepath.Join(dir, "clean.mp3")
	if err := os.WriteFile(input, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	cutter := &fakeCutter{}
	editor := NewEditor(cutter, nil)
	ads := []analysis.AdDetection{{StartTime: 10, EndTime: 15}, {StartTime: 100, EndTime: 105}}
	if err := editor.RemoveAds(context.Background(), input, output, ads, 200); err != nil {
		t.Fatalf("RemoveAds: %v", err)
	}

	if len(cutter.extracts) != 3 {
		t.Fatalf("expected 3 extractions, got %+v", cutter.extracts)
	}
	if len(cutter.concatInput) != 3 {
		t.Fatalf("expected 3 concat inputs, got %d", len(cutter.concatInput))
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestRemoveAdsSingleSegmentSkipsConcat(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	output := filepath.Join(dir, "clean.mp3")
	if err := os.WriteFile(input, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	cutter := &fakeCutter{}
	editor := NewEditor(cutter, nil)
	// Preroll ad only: everything after it is one keep segment.
	ads := []analysis.AdDetection{{StartTime: 0, EndTime: 30}}
	if err := editor.RemoveAds(context.Background(), input, output, ads, 200); err != nil {
		t.Fatalf("RemoveAds: %v", err)
	}

	if cutter.concatInput != nil {
		t.Error("single keep segment should not be concatenated")
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestExtractAdSegmentsSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	if err := os.WriteFile(input, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	cutter := &fakeCutter{failExtract: map[int]error{1: errors.New("boom")}}
	editor := NewEditor(cutter, nil)
	ads := []analysis.AdDetection{
		{StartTime: 10, EndTime: 15},
		{StartTime: 40, EndTime: 45},
		{StartTime: 90, EndTime: 95},
	}

	paths, err := editor.ExtractAdSegments(context.Background(), input, filepath.Join(dir, "ads"), ads)
	if err != nil {
		t.Fatalf("ExtractAdSegments: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 extracted segments, got %v", paths)
	}
}

func TestExtractAdSegmentsDropsSubSecondAds(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	if err := os.WriteFile(input, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	cutter := &fakeCutter{}
	editor := NewEditor(cutter, nil)
	ads := []analysis.AdDetection{
		{StartTime: 10, EndTime: 10.5},
		{StartTime: 40, EndTime: 41},
		{StartTime: 90, EndTime: 90},
	}

	paths, err := editor.ExtractAdSegments(context.Background(), input, filepath.Join(dir, "ads"), ads)
	if err != nil {
		t.Fatalf("ExtractAdSegments: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected only the 1s ad extracted, got %v", paths)
	}
	if len(cutter.extracts) != 1 || !almostEqual(cutter.extracts[0].Start, 40) {
		t.Fatalf("unexpected extraction calls %+v", cutter.extracts)
	}
}

func TestExtractAdSegmentsAbortsOnCancel(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	if err := os.WriteFile(input, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cutter := &fakeCutter{failExtract: map[int]error{1: context.Canceled}}
	editor := NewEditor(cutter, nil)
	ads := []analysis.AdDetection{
		{StartTime: 10, EndTime: 15},
		{StartTime: 40, EndTime: 45},
	}

	// Simulate cancellation hitting mid-run.
	cancel()
	_, err := editor.ExtractAdSegments(ctx, input, filepath.Join(dir, "ads"), ads)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "ads"))
	if len(entries) != 0 {
		t.Errorf("expected cleanup of extracted segments, found %d files", len(entries))
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
