package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node deployments
// without redis. Expired entries are dropped lazily on access and swept
// during enumeration.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memEntry
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memEntry)}
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return "", ErrNotFound
	}
	if entry.expired(time.Now()) {
		delete(s.items, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := time.Now()
	for key, entry := range s.items {
		if entry.expired(now) {
			delete(s.items, key)
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	now := time.Now()
	for key, entry := range s.items {
		if entry.expired(now) {
			delete(s.items, key)
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Stats(_ context.Context, pattern string) (int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	var size int64
	now := time.Now()
	for key, entry := range s.items {
		if entry.expired(now) {
			delete(s.items, key)
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			count++
			size += int64(len(entry.value))
		}
	}
	return count, size, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]memEntry)
	return nil
}
