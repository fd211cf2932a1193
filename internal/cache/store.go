// Package cache provides the key/value stores backing the response cache.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound reports whether err is a cache miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the key/value contract the response cache runs on. Patterns use
// redis glob syntax ('*' and '?'); both implementations honor it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPattern removes all keys matching the pattern and returns how
	// many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Keys enumerates keys matching the pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Stats returns the entry count and estimated total value size in bytes
	// for keys matching the pattern. Best-effort.
	Stats(ctx context.Context, pattern string) (count int, sizeBytes int64, err error)

	Ping(ctx context.Context) error
	Close() error
}
