package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"podscrub/internal/config"
	"podscrub/internal/queue"
	"podscrub/internal/testsupport"
)

type stubParser struct {
	feeds map[string]*gofeed.Feed
	err   error
}

func (p *stubParser) ParseURLWithContext(feedURL string, _ context.Context) (*gofeed.Feed, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.feeds[feedURL], nil
}

func feedItem(guid, audioURL string, published time.Time) *gofeed.Item {
	return &gofeed.Item{
		GUID:            guid,
		PublishedParsed: &published,
		Enclosures: []*gofeed.Enclosure{
			{URL: audioURL, Type: "audio/mpeg"},
		},
	}
}

func newTestScanner(t *testing.T, parser FeedParser) (*Scanner, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFeeds(config.Feed{
		PodcastID: "show",
		URL:       "https://feeds.example.com/show.rss",
	}))
	cfg.Scanner.Enabled = true
	cfg.Scanner.RetentionDays = 14
	store := testsupport.MustOpenStore(t, cfg)
	return NewWithParser(cfg, store, parser, nil), store
}

func TestScanOnceEnqueuesRecentEpisodes(t *testing.T) {
	now := time.Now()
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/show.rss": {
			Items: []*gofeed.Item{
				feedItem("ep-new", "https://cdn.example.com/ep-new.mp3", now.Add(-24*time.Hour)),
				feedItem("ep-old", "https://cdn.example.com/ep-old.mp3", now.Add(-30*24*time.Hour)),
			},
		},
	}}
	scanner, store := newTestScanner(t, parser)

	scanner.ScanOnce(context.Background())

	jobs, err := store.ListByStatus(context.Background(), queue.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 pending job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.EpisodeGUID != "ep-new" || job.Reason != queue.ReasonBackground || job.Protected {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestScanOnceSkipsEpisodesWithActiveJobs(t *testing.T) {
	now := time.Now()
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/show.rss": {
			Items: []*gofeed.Item{
				feedItem("ep-1", "https://cdn.example.com/ep-1.mp3", now.Add(-time.Hour)),
			},
		},
	}}
	scanner, store := newTestScanner(t, parser)

	testsupport.EnqueueJob(t, store, queue.NewJob{
		EpisodeGUID: "ep-1",
		PodcastID:   "show",
		AudioURL:    "https://cdn.example.com/ep-1.mp3",
		Reason:      queue.ReasonManual,
	})

	scanner.ScanOnce(context.Background())

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Waiting != 1 {
		t.Errorf("expected the single pre-existing job, got %d waiting", stats.Waiting)
	}
}

func TestScanOnceSkipsProcessedEpisodes(t *testing.T) {
	now := time.Now()
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/show.rss": {
			Items: []*gofeed.Item{
				feedItem("ep-done", "https://cdn.example.com/ep-done.mp3", now.Add(-time.Hour)),
			},
		},
	}}
	scanner, store := newTestScanner(t, parser)

	// A prior run processed this episode: its job is terminal and a result row
	// exists.
	id := testsupport.EnqueueJob(t, store, queue.NewJob{
		EpisodeGUID: "ep-done",
		PodcastID:   "show",
		AudioURL:    "https://cdn.example.com/ep-done.mp3",
		Reason:      queue.ReasonBackground,
	})
	if err := store.Claim(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkCompleted(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	err := store.SaveResult(context.Background(), &queue.ProcessingResult{
		JobID:        id,
		PodcastID:    "show",
		EpisodeID:    "ep-done",
		OriginalURL:  "https://cdn.example.com/ep-done.mp3",
		ProcessedURL: "https://cdn.example.com/clean/ep-done.mp3",
		ProcessedAt:  now,
	})
	if err != nil {
		t.Fatal(err)
	}

	scanner.ScanOnce(context.Background())

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Waiting != 0 {
		t.Errorf("expected no new jobs, got %d waiting", stats.Waiting)
	}
}

func TestScanOnceIsIdempotent(t *testing.T) {
	now := time.Now()
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/show.rss": {
			Items: []*gofeed.Item{
				feedItem("ep-1", "https://cdn.example.com/ep-1.mp3", now.Add(-time.Hour)),
			},
		},
	}}
	scanner, store := newTestScanner(t, parser)

	scanner.ScanOnce(context.Background())
	scanner.ScanOnce(context.Background())

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Waiting != 1 {
		t.Errorf("expected 1 job after repeated scans, got %d", stats.Waiting)
	}
}

func TestScanOnceFallsBackToEnclosureURLAsGUID(t *testing.T) {
	now := time.Now()
	item := feedItem("", "https://cdn.example.com/no-guid.mp3", now.Add(-time.Hour))
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/show.rss": {Items: []*gofeed.Item{item}},
	}}
	scanner, store := newTestScanner(t, parser)

	scanner.ScanOnce(context.Background())

	jobs, err := store.ListByStatus(context.Background(), queue.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].EpisodeGUID != "https://cdn.example.com/no-guid.mp3" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestStartNoopWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scanner.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	scanner := NewWithParser(cfg, store, &stubParser{}, nil)

	if err := scanner.Start(context.Background()); err != nil {
		t.Fatalf("Start on disabled scanner: %v", err)
	}
	scanner.Stop()
}
