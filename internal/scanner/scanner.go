// Package scanner watches configured podcast feeds and enqueues background
// jobs for recently published episodes that have not been processed yet.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"podscrub/internal/config"
	"podscrub/internal/logging"
	"podscrub/internal/queue"
)

// FeedParser fetches and parses one feed URL.
type FeedParser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// JobSource is the queue surface the scanner needs.
type JobSource interface {
	HasActiveJob(ctx context.Context, episodeGUID string) (bool, error)
	HasResult(ctx context.Context, episodeID string) (bool, error)
	Enqueue(ctx context.Context, req queue.NewJob) (int64, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scanner polls RSS feeds on a fixed interval.
type Scanner struct {
	cfg    *config.Config
	source JobSource
	parser FeedParser
	logger *slog.Logger

	interval  time.Duration
	retention time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a scanner over the configured feeds.
func New(cfg *config.Config, source JobSource, logger *slog.Logger) *Scanner {
	return NewWithParser(cfg, source, gofeed.NewParser(), logger)
}

// NewWithParser constructs a scanner with an explicit feed parser.
func NewWithParser(cfg *config.Config, source JobSource, parser FeedParser, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		cfg:       cfg,
		source:    source,
		parser:    parser,
		logger:    logging.NewComponentLogger(logger, "scanner"),
		interval:  time.Duration(cfg.Scanner.Interval) * time.Second,
		retention: time.Duration(cfg.Scanner.RetentionDays) * 24 * time.Hour,
	}
}

// Start begins the scan loop. A disabled scanner starts nothing and reports
// no error so the daemon wiring stays unconditional.
func (s *Scanner) Start(ctx context.Context) error {
	if !s.cfg.Scanner.Enabled {
		s.logger.Info("scanner disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scanner already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(runCtx)
	return nil
}

// Stop halts the scan loop.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scanner) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.ScanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce walks every configured feed once. Feed-level failures are logged
// and skipped so one broken feed cannot starve the others.
func (s *Scanner) ScanOnce(ctx context.Context) {
	for _, feed := range s.cfg.Scanner.Feeds {
		if ctx.Err() != nil {
			return
		}
		enqueued, err := s.scanFeed(ctx, feed)
		if err != nil {
			s.logger.Warn("feed scan failed",
				logging.String("podcast_id", feed.PodcastID),
				logging.String("url", feed.URL),
				logging.Error(err))
			continue
		}
		if enqueued > 0 {
			s.logger.Info("feed scan enqueued episodes",
				logging.String("podcast_id", feed.PodcastID),
				logging.Int("enqueued", enqueued))
		}
	}
	s.pruneCompleted(ctx)
}

// pruneCompleted drops unprotected completed jobs that fell out of the
// retention window. Protected jobs stay until removed manually.
func (s *Scanner) pruneCompleted(ctx context.Context) {
	if ctx.Err() != nil || s.retention <= 0 {
		return
	}
	removed, err := s.source.DeleteCompletedBefore(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.logger.Warn("completed job cleanup failed", logging.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("removed completed jobs past retention",
			logging.Int64("removed", removed))
	}
}

func (s *Scanner) scanFeed(ctx context.Context, feedCfg config.Feed) (int, error) {
	feed, err := s.parser.ParseURLWithContext(feedCfg.URL, ctx)
	if err != nil {
		return 0, err
	}
	if feed == nil {
		return 0, errors.New("feed parsed to nil")
	}

	cutoff := time.Now().Add(-s.retention)
	enqueued := 0
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil || published.Before(cutoff) {
			continue
		}

		audioURL := episodeAudioURL(item)
		if audioURL == "" {
			continue
		}
		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			guid = audioURL
		}

		if skip, err := s.alreadyHandled(ctx, guid); err != nil {
			return enqueued, err
		} else if skip {
			continue
		}

		_, err := s.source.Enqueue(ctx, queue.NewJob{
			EpisodeGUID: guid,
			PodcastID:   feedCfg.PodcastID,
			AudioURL:    audioURL,
			Reason:      queue.ReasonBackground,
			Protected:   false,
		})
		if err != nil {
			if errors.Is(err, queue.ErrDuplicateActiveJob) {
				continue
			}
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *Scanner) alreadyHandled(ctx context.Context, guid string) (bool, error) {
	if active, err := s.source.HasActiveJob(ctx, guid); err != nil || active {
		return active, err
	}
	return s.source.HasResult(ctx, guid)
}

func episodeAudioURL(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "audio/") || enclosure.Type == "" {
			if url := strings.TrimSpace(enclosure.URL); url != "" {
				return url
			}
		}
	}
	return ""
}
