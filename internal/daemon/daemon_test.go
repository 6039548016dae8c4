package daemon

import (
	"context"
	"testing"
	"time"

	"podscrub/internal/config"
	"podscrub/internal/pipeline"
	"podscrub/internal/queue"
	"podscrub/internal/scanner"
	"podscrub/internal/scheduler"
	"podscrub/internal/testsupport"
)

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, *queue.Job, pipeline.ProgressFunc) error {
	return nil
}

func newTestDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *Daemon {
	t.Helper()
	cfg.Scanner.Enabled = false
	sched := scheduler.New(cfg, store, noopProcessor{}, nil)
	scan := scanner.New(cfg, store, nil)
	d, err := NewWithServices(cfg, store, sched, scan, nil)
	if err != nil {
		t.Fatalf("NewWithServices: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Running() {
		t.Error("daemon should report running")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("second Start on a running daemon must fail")
	}

	d.Stop()
	if d.Running() {
		t.Error("daemon should report stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := newTestDaemon(t, cfg, store)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second := newTestDaemon(t, cfg, store)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must not acquire the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("restart after release: %v", err)
	}
	second.Stop()
}

func TestDaemonStartResetsStuckJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// Simulate a crash: a job left running with no live owner.
	id := testsupport.EnqueueJob(t, store, queue.NewJob{
		EpisodeGUID: "ep-stuck",
		PodcastID:   "show",
		AudioURL:    "https://cdn.example.com/ep-stuck.mp3",
		Reason:      queue.ReasonBackground,
	})
	if err := store.Claim(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	d := newTestDaemon(t, cfg, store)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	// The reset job becomes pending and the scheduler picks it back up.
	deadline := time.Now().Add(10 * time.Second)
	for {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == queue.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %s, want completed", job.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
