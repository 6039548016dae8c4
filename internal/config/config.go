package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Scheduler contains worker-pool sizing and the queue polling cadence.
type Scheduler struct {
	// Concurrency is the number of pipelines allowed to run at once.
	Concurrency int `toml:"concurrency"`
	// PollInterval is the queue polling period in seconds.
	PollInterval int `toml:"poll_interval"`
	// DrainTimeout bounds how long Stop waits for in-flight pipelines, in seconds.
	DrainTimeout int `toml:"drain_timeout"`
	// RetryInterval drives the failed-job retry sweep, in seconds. Zero
	// disables the sweep; retries then happen only on explicit request.
	RetryInterval int `toml:"retry_interval"`
}

// Feed identifies one subscribed podcast feed.
type Feed struct {
	PodcastID string `toml:"podcast_id"`
	URL       string `toml:"url"`
}

// Scanner contains configuration for background episode discovery.
type Scanner struct {
	Enabled       bool   `toml:"enabled"`
	Interval      int    `toml:"interval"`
	RetentionDays int    `toml:"retention_days"`
	Feeds         []Feed `toml:"feeds"`
}

// FFmpeg contains the media tool binaries and their subprocess deadline.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	ProbeBinary    string `toml:"probe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the detection and refinement models.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	AudioModel     string  `toml:"audio_model"`
	TextModel      string  `toml:"text_model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	// CostCeiling is the soft per-episode spend limit in dollars. Exceeding it
	// logs a warning; processing continues.
	CostCeiling float64 `toml:"cost_ceiling"`
}

// Storage contains object storage settings for processed audio and artifacts.
type Storage struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	Bucket string `toml:"bucket"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podscrub.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Scheduler Scheduler `toml:"scheduler"`
	Scanner   Scanner   `toml:"scanner"`
	FFmpeg    FFmpeg    `toml:"ffmpeg"`
	LLM       LLM       `toml:"llm"`
	Storage   Storage   `toml:"storage"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podscrub/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file yields
// defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the work and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	return filepath.Clean(trimmed), nil
}
