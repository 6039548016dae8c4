package deps

import (
	"os"
	"path/filepath"
	"testing"

	"podscrub/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
}

func TestForConfigUsesConfiguredPaths(t *testing.T) {
	cfg := config.Default()
	cfg.FFmpeg.Binary = "/opt/ffmpeg/bin/ffmpeg"

	reqs := ForConfig(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("ffmpeg command = %q", reqs[0].Command)
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: true},
		{Name: "FFprobe", Available: false, Detail: `binary "ffprobe" not found`},
		{Name: "Extra", Available: false, Optional: true},
	}
	err := MissingRequired(statuses)
	if err == nil {
		t.Fatal("expected error for missing required tool")
	}
	if got := err.Error(); got != `missing required tools: FFprobe (binary "ffprobe" not found)` {
		t.Errorf("unexpected message %q", got)
	}

	if err := MissingRequired([]Status{{Name: "FFmpeg", Available: true}}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
