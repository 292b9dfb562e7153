package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"sprocket/internal/config"
	"sprocket/internal/queue"
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

// NewJob inserts a queued job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, op queue.Operation, inputPath, outputPath string) *queue.Job {
	t.Helper()

	job := &queue.Job{
		ID:         uuid.NewString(),
		Operation:  op,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Status:     queue.StatusQueued,
	}
	if err := store.Put(context.Background(), job); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return job
}
