package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscrub/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Scheduler.Concurrency != 2 {
		t.Fatalf("expected default concurrency 2, got %d", cfg.Scheduler.Concurrency)
	}
	if cfg.FFmpeg.Binary != "ffmpeg" {
		t.Fatalf("expected default ffmpeg binary, got %q", cfg.FFmpeg.Binary)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[scheduler]
concurrency = 4
poll_interval = 5

[llm]
base_url = "https://api.example.com/v1/"

[[scanner.feeds]]
podcast_id = "show"
url = " https://example.com/feed.xml "
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Scheduler.Concurrency != 4 {
		t.Fatalf("concurrency not applied: %d", cfg.Scheduler.Concurrency)
	}
	if strings.HasSuffix(cfg.LLM.BaseURL, "/") {
		t.Fatalf("base url not trimmed: %q", cfg.LLM.BaseURL)
	}
	if len(cfg.Scanner.Feeds) != 1 || cfg.Scanner.Feeds[0].URL != "https://example.com/feed.xml" {
		t.Fatalf("feed not normalized: %+v", cfg.Scanner.Feeds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero concurrency")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}

	cfg = config.Default()
	cfg.Scanner.Feeds = []config.Feed{{URL: "https://example.com/feed.xml"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for feed without podcast_id")
	}
}

func TestSampleConfigNotEmpty(t *testing.T) {
	if !strings.Contains(config.SampleConfig(), "[scheduler]") {
		t.Fatal("sample config should document the scheduler section")
	}
}
