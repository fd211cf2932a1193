// Package cache implements the response cache: deterministic content-addressed
// keys, per-category policy, and best-effort storage. Cache trouble is never
// allowed to fail a caller's request; every store failure degrades to a miss
// or a no-op and is logged.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	store "github.com/studyhall/llmroute/internal/cache"
	"github.com/studyhall/llmroute/llm"
)

// Config tunes cache admission.
type Config struct {
	// MaxCacheableTokens rejects suspiciously expensive responses from the
	// cache; responses that large are usually malformed or error-adjacent.
	MaxCacheableTokens int `yaml:"max_cacheable_tokens" json:"max_cacheable_tokens"`
}

// DefaultConfig returns the default cache tuning.
func DefaultConfig() Config {
	return Config{MaxCacheableTokens: 16_000}
}

// entry is the stored representation of a cached result.
type entry struct {
	Output     string    `json:"output"`
	TokensUsed int       `json:"tokens_used"`
	CostCents  int64     `json:"cost_cents"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	CachedAt   time.Time `json:"cached_at"`
}

// ResponseCache caches generation results per action category.
type ResponseCache struct {
	store    store.Store
	policies *PolicyTable
	config   Config
	logger   *zap.Logger
}

// New creates a response cache on top of the given store and policy table.
func New(s store.Store, policies *PolicyTable, config Config, logger *zap.Logger) *ResponseCache {
	if config.MaxCacheableTokens <= 0 {
		config.MaxCacheableTokens = DefaultConfig().MaxCacheableTokens
	}
	return &ResponseCache{
		store:    s,
		policies: policies,
		config:   config,
		logger:   logger.With(zap.String("component", "response_cache")),
	}
}

// Get looks up a cached result. A disabled policy, an unknown category, or a
// store failure all return a miss; there is no error path. Hits are annotated
// with ServedFromCache and the original insertion time.
func (c *ResponseCache) Get(ctx context.Context, category llm.ActionCategory, prompt, systemPrompt, userID string) (*llm.GenerationResult, bool) {
	policy, ok := c.policies.Get(category)
	if !ok || !policy.Enabled {
		return nil, false
	}

	key := BuildKey(policy, prompt, systemPrompt, userID)
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !store.IsNotFound(err) {
			c.logger.Warn("cache get degraded to miss", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return &llm.GenerationResult{
		Output:          e.Output,
		TokensUsed:      e.TokensUsed,
		CostCents:       e.CostCents,
		Provider:        e.Provider,
		Model:           e.Model,
		ServedFromCache: true,
		CachedAt:        e.CachedAt,
	}, true
}

// Put stores a result under the category's policy. It silently refuses when
// the policy is disabled, the output is blank, or the token count exceeds the
// cacheable ceiling. Store failures are logged and swallowed.
func (c *ResponseCache) Put(ctx context.Context, category llm.ActionCategory, prompt, systemPrompt, userID string, result *llm.GenerationResult) {
	policy, ok := c.policies.Get(category)
	if !ok || !policy.Enabled {
		return
	}
	if strings.TrimSpace(result.Output) == "" {
		return
	}
	if result.TokensUsed > c.config.MaxCacheableTokens {
		c.logger.Debug("refusing to cache suspiciously expensive response",
			zap.String("category", string(category)),
			zap.Int("tokens", result.TokensUsed))
		return
	}

	data, err := json.Marshal(entry{
		Output:     result.Output,
		TokensUsed: result.TokensUsed,
		CostCents:  result.CostCents,
		Provider:   result.Provider,
		Model:      result.Model,
		CachedAt:   time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("cache entry marshal failed", zap.Error(err))
		return
	}

	key := BuildKey(policy, prompt, systemPrompt, userID)
	if err := c.store.Set(ctx, key, string(data), policy.TTL); err != nil {
		c.logger.Warn("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

// Target selects what Invalidate removes. Exactly one mode applies:
// RawPattern alone, Category alone, or Category plus UserID.
type Target struct {
	Category   llm.ActionCategory
	UserID     string
	RawPattern string
}

// ErrInvalidTarget reports a malformed invalidation target. This is an
// operator mistake, distinct from store failures, which are swallowed.
var ErrInvalidTarget = errors.New("cache: invalid invalidation target")

// Invalidate removes matching entries and returns how many were removed.
// Calling it twice on the same target is idempotent: the second call matches
// the empty set and succeeds. Store failures are logged and absorbed.
func (c *ResponseCache) Invalidate(ctx context.Context, target Target) (int, error) {
	pattern, err := c.patternFor(target)
	if err != nil {
		return 0, err
	}

	removed, err := c.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		c.logger.Warn("cache invalidation failed",
			zap.String("pattern", pattern),
			zap.Error(err))
		return removed, nil
	}

	c.logger.Info("cache invalidated",
		zap.String("pattern", pattern),
		zap.Int("removed", removed))
	return removed, nil
}

func (c *ResponseCache) patternFor(target Target) (string, error) {
	switch {
	case target.RawPattern != "":
		if target.Category != "" || target.UserID != "" {
			return "", ErrInvalidTarget
		}
		return target.RawPattern, nil
	case target.Category != "":
		policy, ok := c.policies.Get(target.Category)
		if !ok {
			return "", ErrInvalidTarget
		}
		if target.UserID != "" {
			return policy.Namespace + ":*:u:" + target.UserID, nil
		}
		return policy.Namespace + ":*", nil
	default:
		return "", ErrInvalidTarget
	}
}

// UpdatePolicy retunes one category's policy at runtime. The update is
// validated against the same invariants as the startup table.
func (c *ResponseCache) UpdatePolicy(category llm.ActionCategory, policy Policy) error {
	return c.policies.Update(category, policy)
}

// CategoryStats is the per-category slice of cache statistics.
type CategoryStats struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

// Stats holds per-category entry counts and an estimated total size.
type Stats struct {
	Categories     map[llm.ActionCategory]CategoryStats `json:"categories"`
	TotalSizeBytes int64                                `json:"total_size_bytes"`
}

// Stats collects best-effort statistics. Categories are enumerated
// concurrently; a failure in one category is logged and skipped without
// aborting the others.
func (c *ResponseCache) Stats(ctx context.Context) Stats {
	stats := Stats{Categories: make(map[llm.ActionCategory]CategoryStats)}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, category := range c.policies.Categories() {
		policy, ok := c.policies.Get(category)
		if !ok {
			continue
		}
		g.Go(func() error {
			count, size, err := c.store.Stats(ctx, policy.Namespace+":*")
			if err != nil {
				c.logger.Warn("cache stats failed for category",
					zap.String("category", string(category)),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			stats.Categories[category] = CategoryStats{Entries: count, SizeBytes: size}
			stats.TotalSizeBytes += size
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are logged per category
	return stats
}
