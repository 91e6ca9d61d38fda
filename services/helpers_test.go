package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"agmark-sync/models"
	"agmark-sync/storage"
	"agmark-sync/utils"
)

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithLevel(io.Discard, slog.LevelError, true)
}

// flakyStore wraps a MemoryStore and fails the pushes whose overall index is listed.
type flakyStore struct {
	*storage.MemoryStore
	failAt     map[int]error
	resolveErr error

	mu    sync.Mutex
	calls int
}

func (f *flakyStore) Collection(ctx context.Context, path string) (storage.Collection, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	col, err := f.MemoryStore.Collection(ctx, path)
	if err != nil {
		return nil, err
	}
	return &flakyCollection{Collection: col, store: f}, nil
}

type flakyCollection struct {
	storage.Collection
	store *flakyStore
}

func (c *flakyCollection) Push(ctx context.Context, doc models.Document) (string, error) {
	c.store.mu.Lock()
	i := c.store.calls
	c.store.calls++
	c.store.mu.Unlock()
	if err, ok := c.store.failAt[i]; ok {
		return "", err
	}
	return c.Collection.Push(ctx, doc)
}
