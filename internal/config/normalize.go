package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeScanner()
	c.normalizeFFmpeg()
	c.normalizeLLM()
	c.normalizeStorage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = defaultConcurrency
	}
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = defaultPollInterval
	}
	if c.Scheduler.DrainTimeout <= 0 {
		c.Scheduler.DrainTimeout = defaultDrainTimeout
	}
	if c.Scheduler.RetryInterval < 0 {
		c.Scheduler.RetryInterval = 0
	}
}

func (c *Config) normalizeScanner() {
	if c.Scanner.Interval <= 0 {
		c.Scanner.Interval = defaultScannerInterval
	}
	if c.Scanner.RetentionDays <= 0 {
		c.Scanner.RetentionDays = defaultRetentionDays
	}
	feeds := c.Scanner.Feeds[:0]
	for _, feed := range c.Scanner.Feeds {
		feed.PodcastID = strings.TrimSpace(feed.PodcastID)
		feed.URL = strings.TrimSpace(feed.URL)
		if feed.URL == "" {
			continue
		}
		feeds = append(feeds, feed)
	}
	c.Scanner.Feeds = feeds
}

func (c *Config) normalizeFFmpeg() {
	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.FFmpeg.ProbeBinary) == "" {
		c.FFmpeg.ProbeBinary = defaultFFprobeBinary
	}
	if c.FFmpeg.TimeoutSeconds <= 0 {
		c.FFmpeg.TimeoutSeconds = defaultFFmpegTimeout
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("PODSCRUB_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if strings.TrimSpace(c.LLM.AudioModel) == "" {
		c.LLM.AudioModel = defaultLLMAudioModel
	}
	if strings.TrimSpace(c.LLM.TextModel) == "" {
		c.LLM.TextModel = defaultLLMTextModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.CostCeiling <= 0 {
		c.LLM.CostCeiling = defaultLLMCostCeiling
	}
}

func (c *Config) normalizeStorage() {
	if c.Storage.APIKey == "" {
		if value, ok := os.LookupEnv("PODSCRUB_STORAGE_API_KEY"); ok {
			c.Storage.APIKey = strings.TrimSpace(value)
		}
	}
	c.Storage.URL = strings.TrimRight(strings.TrimSpace(c.Storage.URL), "/")
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		c.Storage.Bucket = defaultStorageBucket
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
