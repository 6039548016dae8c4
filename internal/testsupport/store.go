package testsupport

import (
	"context"
	"testing"

	"podscrub/internal/config"
	"podscrub/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueueJob inserts a job for tests using the provided store.
func EnqueueJob(t testing.TB, store *queue.Store, req queue.NewJob) int64 {
	t.Helper()

	id, err := store.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return id
}
