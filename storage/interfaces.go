package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agmark-sync/models"
)

// ErrInvalidPath is returned when a collection path cannot address the store.
var ErrInvalidPath = errors.New("invalid store path")

// illegalSegmentChars may not appear in any path segment.
const illegalSegmentChars = ".$[]#"

// Store is a hierarchical, path-addressed document store.
type Store interface {
	// Collection resolves path to a collection that records can be appended to.
	Collection(ctx context.Context, path string) (Collection, error)
	Close() error
}

// Collection is an append-only list of documents under one store path.
type Collection interface {
	Path() string
	// Push appends doc as a new child and returns the key the store assigned.
	Push(ctx context.Context, doc models.Document) (string, error)
}

// Counter is implemented by stores that can count the documents under a path.
type Counter interface {
	Count(ctx context.Context, path string) (int, error)
}

// StoreError is a store-level failure for a single operation.
type StoreError struct {
	Op     string
	Path   string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("store: %s %s: status %d: %v", e.Op, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// CleanPath validates a slash separated path and returns it without leading
// or trailing slashes.
func CleanPath(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		if strings.ContainsAny(seg, illegalSegmentChars) {
			return "", fmt.Errorf("%w: segment %q contains one of %q", ErrInvalidPath, seg, illegalSegmentChars)
		}
	}
	return trimmed, nil
}
