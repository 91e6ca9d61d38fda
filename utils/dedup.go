package utils

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// KeySet remembers recently seen keys for a bounded time. It is safe for
// concurrent use.
type KeySet struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewKeySet creates a KeySet holding at most size keys, each for ttl.
func NewKeySet(size int, ttl time.Duration) *KeySet {
	if size <= 0 {
		size = 1
	}
	return &KeySet{seen: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen.Peek(key); ok {
		return false
	}
	s.seen.Add(key, struct{}{})
	return true
}

// Contains returns true if the key was seen and has not expired.
func (s *KeySet) Contains(key string) bool {
	_, ok := s.seen.Peek(key)
	return ok
}

// Remove forgets a key, e.g. after the write it guarded failed.
func (s *KeySet) Remove(key string) {
	s.seen.Remove(key)
}

// Size returns the number of live keys tracked.
func (s *KeySet) Size() int {
	return s.seen.Len()
}
