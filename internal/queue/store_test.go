package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"podscrub/internal/analysis"
	"podscrub/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func enqueue(t *testing.T, store *queue.Store, guid string, priority int, reason queue.Reason) int64 {
	t.Helper()
	id, err := store.Enqueue(context.Background(), queue.NewJob{
		EpisodeGUID: guid,
		PodcastID:   "show",
		AudioURL:    "https://example.com/" + guid + ".mp3",
		Priority:    priority,
		Reason:      reason,
		Protected:   reason == queue.ReasonManual,
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", guid, err)
	}
	return id
}

func TestEnqueueRefusesDuplicateManualJob(t *testing.T) {
	store := openStore(t)
	enqueue(t, store, "ep-1", 0, queue.ReasonManual)

	_, err := store.Enqueue(context.Background(), queue.NewJob{
		EpisodeGUID: "ep-1",
		PodcastID:   "show",
		AudioURL:    "https://example.com/ep-1.mp3",
		Reason:      queue.ReasonManual,
	})
	if !errors.Is(err, queue.ErrDuplicateActiveJob) {
		t.Fatalf("expected ErrDuplicateActiveJob, got %v", err)
	}
}

func TestEnqueueAllowsManualAfterTerminal(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-1", 0, queue.ReasonManual)
	if err := store.Claim(ctx, id); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkFailed(ctx, id, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if _, err := store.Enqueue(ctx, queue.NewJob{
		EpisodeGUID: "ep-1",
		PodcastID:   "show",
		AudioURL:    "https://example.com/ep-1.mp3",
		Reason:      queue.ReasonManual,
	}); err != nil {
		t.Fatalf("manual enqueue after failure should succeed: %v", err)
	}
}

func TestNextEligibleOrdering(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	enqueue(t, store, "old-low", 0, queue.ReasonBackground)
	highID := enqueue(t, store, "new-high", 10, queue.ReasonBackground)

	job, err := store.NextEligible(ctx)
	if err != nil {
		t.Fatalf("next eligible: %v", err)
	}
	if job == nil || job.ID != highID {
		t.Fatalf("expected high-priority job first, got %+v", job)
	}

	if err := store.Claim(ctx, highID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	job, err = store.NextEligible(ctx)
	if err != nil {
		t.Fatalf("next eligible: %v", err)
	}
	if job == nil || job.EpisodeGUID != "old-low" {
		t.Fatalf("expected oldest remaining job, got %+v", job)
	}
}

func TestClaimExclusivity(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-race", 0, queue.ReasonBackground)

	const attempts = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Claim(ctx, id); err == nil {
				wins <- struct{}{}
			} else if !errors.Is(err, queue.ErrClaimConflict) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", won)
	}

	job, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != queue.StatusRunning {
		t.Fatalf("expected running, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Fatalf("expected single attempt increment, got %d", job.Attempts)
	}
}

func TestFailedJobRetryLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-retry", 0, queue.ReasonBackground)

	if err := store.Claim(ctx, id); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkFailed(ctx, id, "download timeout"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	job, _ := store.GetByID(ctx, id)
	if job.Status != queue.StatusFailed || job.LastError != "download timeout" {
		t.Fatalf("failure state not recorded: %+v", job)
	}

	if err := store.ResetToPending(ctx, id); err != nil {
		t.Fatalf("reset to pending: %v", err)
	}
	next, err := store.NextEligible(ctx)
	if err != nil {
		t.Fatalf("next eligible: %v", err)
	}
	if next == nil || next.ID != id {
		t.Fatal("retried job should be eligible again")
	}
	if next.Attempts != 1 {
		t.Fatalf("attempts should be preserved across reset, got %d", next.Attempts)
	}

	if err := store.Claim(ctx, id); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if err := store.MarkCompleted(ctx, id); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	job, _ = store.GetByID(ctx, id)
	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.LastError != "" {
		t.Fatalf("last error should be cleared on success, got %q", job.LastError)
	}
	if job.Attempts != 2 {
		t.Fatalf("expected attempts=2 after retry, got %d", job.Attempts)
	}
}

func TestResetToPendingRejectsNonFailed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-1", 0, queue.ReasonBackground)

	if err := store.ResetToPending(ctx, id); !errors.Is(err, queue.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable for pending job, got %v", err)
	}
	if err := store.ResetToPending(ctx, 9999); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStatsBuckets(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	waiting := enqueue(t, store, "ep-a", 0, queue.ReasonBackground)
	running := enqueue(t, store, "ep-b", 0, queue.ReasonBackground)
	failed := enqueue(t, store, "ep-c", 0, queue.ReasonBackground)
	_ = waiting

	if err := store.Claim(ctx, running); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.Claim(ctx, failed); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkFailed(ctx, failed, "x"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Waiting != 1 || stats.Active != 1 || stats.Failed != 1 || stats.Completed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestResetStuckRunning(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-stuck", 0, queue.ReasonBackground)
	if err := store.Claim(ctx, id); err != nil {
		t.Fatalf("claim: %v", err)
	}

	n, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("reset stuck: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one reset, got %d", n)
	}
	job, _ := store.GetByID(ctx, id)
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending after reset, got %s", job.Status)
	}
}

func TestResultsRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-done", 0, queue.ReasonBackground)

	result := &queue.ProcessingResult{
		JobID:             id,
		PodcastID:         "show",
		EpisodeID:         "ep-done",
		OriginalURL:       "https://example.com/ep-done.mp3",
		ProcessedURL:      "https://cdn.example.com/ep-done.mp3",
		OriginalDuration:  1800,
		ProcessedDuration: 1680,
		AdsRemoved:        3,
		Chapters: []analysis.Chapter{
			{Title: "Intro", StartTime: 0, EndTime: 120},
		},
		ProcessingCost: 0.42,
		ProcessedAt:    time.Now().UTC(),
	}
	if err := store.SaveResult(ctx, result); err != nil {
		t.Fatalf("save result: %v", err)
	}

	has, err := store.HasResult(ctx, "ep-done")
	if err != nil || !has {
		t.Fatalf("expected result present, has=%v err=%v", has, err)
	}

	loaded, err := store.GetResult(ctx, "ep-done")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if loaded.AdsRemoved != 3 || loaded.ProcessedDuration != 1680 {
		t.Fatalf("result fields lost: %+v", loaded)
	}
	if len(loaded.Chapters) != 1 || loaded.Chapters[0].Title != "Intro" {
		t.Fatalf("chapters lost: %+v", loaded.Chapters)
	}

	// A retried job overwrites the episode's previous result.
	result.ProcessedDuration = 1500
	if err := store.SaveResult(ctx, result); err != nil {
		t.Fatalf("save result again: %v", err)
	}
	loaded, _ = store.GetResult(ctx, "ep-done")
	if loaded.ProcessedDuration != 1500 {
		t.Fatalf("expected overwrite, got %v", loaded.ProcessedDuration)
	}
}

func TestUsageLedger(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := enqueue(t, store, "ep-usage", 0, queue.ReasonBackground)

	records := []queue.UsageRecord{
		{JobID: id, Model: "gemini", Operation: "analyze_audio", InputTokens: 1200, OutputTokens: 300, Cost: 0.10, DurationMS: 2400},
		{JobID: id, Model: "gemini", Operation: "refine", InputTokens: 800, OutputTokens: 200, Cost: 0.05, DurationMS: 900},
	}
	for _, rec := range records {
		if err := store.AppendUsage(ctx, rec); err != nil {
			t.Fatalf("append usage: %v", err)
		}
	}

	total, err := store.JobCost(ctx, id)
	if err != nil {
		t.Fatalf("job cost: %v", err)
	}
	if total < 0.149 || total > 0.151 {
		t.Fatalf("expected total cost 0.15, got %v", total)
	}

	loaded, err := store.JobUsage(ctx, id)
	if err != nil {
		t.Fatalf("job usage: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Operation != "analyze_audio" {
		t.Fatalf("unexpected usage records: %+v", loaded)
	}
}

func TestDeleteCompletedSkipsProtected(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	protected := enqueue(t, store, "ep-protected", 0, queue.ReasonManual)
	plain := enqueue(t, store, "ep-plain", 0, queue.ReasonBackground)
	for _, id := range []int64{protected, plain} {
		if err := store.Claim(ctx, id); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := store.MarkCompleted(ctx, id); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	err := store.SaveResult(ctx, &queue.ProcessingResult{
		JobID:        plain,
		PodcastID:    "show",
		EpisodeID:    "ep-plain",
		OriginalURL:  "https://example.com/ep-plain.mp3",
		ProcessedURL: "https://cdn.example.com/ep-plain.mp3",
		ProcessedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("save result: %v", err)
	}

	n, err := store.DeleteCompletedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete completed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the unprotected job removed, got %d", n)
	}
	job, _ := store.GetByID(ctx, protected)
	if job == nil {
		t.Fatal("protected job must survive retention cleanup")
	}

	// The result outlives its job so the scanner still skips the episode.
	result, err := store.GetResult(ctx, "ep-plain")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result == nil || result.JobID != 0 {
		t.Fatalf("expected surviving result with detached job, got %+v", result)
	}
}
