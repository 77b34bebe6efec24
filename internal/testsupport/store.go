package testsupport

import (
	"context"
	"testing"

	"hyperion/internal/config"
	"hyperion/internal/queue"
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

// NewTask registers a new task for tests using the provided store.
func NewTask(t testing.TB, store *queue.Store) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background())
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}

// NewUploadedTask registers a task and confirms its upload, leaving it in
// UPLOADED status ready for queueing.
func NewUploadedTask(t testing.TB, store *queue.Store) *queue.Task {
	t.Helper()

	task := NewTask(t, store)
	updated, err := store.Transition(context.Background(), queue.TransitionRequest{
		TaskID: task.ID,
		From:   queue.StatusPending,
		To:     queue.StatusUploaded,
		Note:   "upload confirmed",
	})
	if err != nil {
		t.Fatalf("confirm upload: %v", err)
	}
	return updated
}

// NewQueuedTask registers a task, confirms its upload, and enqueues it.
func NewQueuedTask(t testing.TB, store *queue.Store) *queue.Task {
	t.Helper()

	task := NewUploadedTask(t, store)
	queued, err := store.Enqueue(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !queued {
		t.Fatalf("task %s was not enqueued", task.ID)
	}
	refreshed, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("refresh task: %v", err)
	}
	return refreshed
}
