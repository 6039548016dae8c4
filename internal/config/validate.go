package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.Concurrency < 1 {
		return errors.New("scheduler.concurrency must be at least 1")
	}
	if c.Scheduler.PollInterval < 1 {
		return errors.New("scheduler.poll_interval must be at least 1 second")
	}
	if c.Scheduler.DrainTimeout < 1 {
		return errors.New("scheduler.drain_timeout must be at least 1 second")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if !c.Scanner.Enabled {
		return nil
	}
	seen := make(map[string]struct{}, len(c.Scanner.Feeds))
	for _, feed := range c.Scanner.Feeds {
		if feed.PodcastID == "" {
			return fmt.Errorf("scanner.feeds: podcast_id required for feed %q", feed.URL)
		}
		if _, dup := seen[feed.PodcastID]; dup {
			return fmt.Errorf("scanner.feeds: duplicate podcast_id %q", feed.PodcastID)
		}
		seen[feed.PodcastID] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
