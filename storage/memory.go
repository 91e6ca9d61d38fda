package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"agmark-sync/models"
)

// MemoryEntry is one document held by a MemoryStore.
type MemoryEntry struct {
	Key string
	Doc models.Document
}

// MemoryStore keeps documents in process. Used for dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string][]MemoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string][]MemoryEntry)}
}

func (m *MemoryStore) Collection(_ context.Context, path string) (Collection, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	return &memoryCollection{store: m, path: clean}, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Entries returns a copy of the documents under path in push order.
func (m *MemoryStore) Entries(path string) []MemoryEntry {
	clean, err := CleanPath(path)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MemoryEntry(nil), m.nodes[clean]...)
}

// Count returns the number of documents under path.
func (m *MemoryStore) Count(_ context.Context, path string) (int, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes[clean]), nil
}

type memoryCollection struct {
	store *MemoryStore
	path  string
}

func (c *memoryCollection) Path() string {
	return c.path
}

func (c *memoryCollection) Push(ctx context.Context, doc models.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &StoreError{Op: "push", Path: c.path, Err: err}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", &StoreError{Op: "push", Path: c.path, Err: err}
	}

	copied := make(models.Document, len(doc))
	for k, v := range doc {
		copied[k] = v
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.nodes[c.path] = append(c.store.nodes[c.path], MemoryEntry{Key: id.String(), Doc: copied})
	return id.String(), nil
}
