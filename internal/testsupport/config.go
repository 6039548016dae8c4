// Package testsupport provides shared helpers for package tests: temp-backed
// configurations, queue stores with registered cleanup, and file fixtures.
package testsupport

import (
	"path/filepath"
	"testing"

	"podscrub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Scheduler.Concurrency = 2
	cfg.Scheduler.PollInterval = 1
	cfg.Scheduler.DrainTimeout = 5
	cfg.LLM.APIKey = "test-key"
	cfg.Storage.URL = "https://project.supabase.co"
	cfg.Storage.APIKey = "test-key"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithConcurrency overrides the scheduler's slot count.
func WithConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.Concurrency = n
	}
}

// WithFeeds sets the scanner's feed list.
func WithFeeds(feeds ...config.Feed) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scanner.Feeds = feeds
	}
}
