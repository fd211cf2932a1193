package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	store "github.com/studyhall/llmroute/internal/cache"
	"github.com/studyhall/llmroute/llm"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *ResponseCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := store.DefaultRedisConfig()
	config.Addr = mr.Addr()
	s, err := store.NewRedisStore(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	policies, err := NewPolicyTable(DefaultPolicies())
	require.NoError(t, err)

	return mr, New(s, policies, DefaultConfig(), zap.NewNop())
}

func sampleResult() *llm.GenerationResult {
	return &llm.GenerationResult{
		Output:     "1. Review chapter 3\n2. Practice problems",
		TokensUsed: 120,
		CostCents:  2,
		Provider:   "openai",
		Model:      "gpt-4o-mini",
	}
}

func TestResponseCache_RoundTrip(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionGenerateTasks, "plan week", "system", "u1", sampleResult())

	got, hit := c.Get(ctx, llm.ActionGenerateTasks, "plan week", "system", "u1")
	require.True(t, hit)
	assert.True(t, got.ServedFromCache)
	assert.False(t, got.CachedAt.IsZero())
	assert.Equal(t, sampleResult().Output, got.Output)
	assert.Equal(t, "openai", got.Provider)
}

func TestResponseCache_DisabledCategoryIsAlwaysMiss(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionChat, "hello", "", "u1", sampleResult())

	_, hit := c.Get(ctx, llm.ActionChat, "hello", "", "u1")
	assert.False(t, hit)
}

func TestResponseCache_UnknownCategoryIsMiss(t *testing.T) {
	_, c := setupCache(t)

	_, hit := c.Get(context.Background(), llm.ActionCategory("mystery"), "p", "", "")
	assert.False(t, hit)
}

func TestResponseCache_RefusesBlankOutput(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	blank := sampleResult()
	blank.Output = "   \n\t "
	c.Put(ctx, llm.ActionGenerateTasks, "p", "", "", blank)

	_, hit := c.Get(ctx, llm.ActionGenerateTasks, "p", "", "")
	assert.False(t, hit)
}

func TestResponseCache_RefusesSuspiciouslyExpensive(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	big := sampleResult()
	big.TokensUsed = DefaultConfig().MaxCacheableTokens + 1
	c.Put(ctx, llm.ActionGenerateTasks, "p", "", "", big)

	_, hit := c.Get(ctx, llm.ActionGenerateTasks, "p", "", "")
	assert.False(t, hit)
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionTutor, "explain photosynthesis", "", "u1", sampleResult())

	_, hit := c.Get(ctx, llm.ActionTutor, "explain photosynthesis", "", "u1")
	require.True(t, hit)

	mr.FastForward(2 * time.Hour)

	_, hit = c.Get(ctx, llm.ActionTutor, "explain photosynthesis", "", "u1")
	assert.False(t, hit)
}

func TestResponseCache_PerUserScoping(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	// Tutor is user-scoped: u2 must not see u1's entry.
	c.Put(ctx, llm.ActionTutor, "explain osmosis", "", "u1", sampleResult())

	_, hit := c.Get(ctx, llm.ActionTutor, "explain osmosis", "", "u2")
	assert.False(t, hit)

	_, hit = c.Get(ctx, llm.ActionTutor, "explain osmosis", "", "u1")
	assert.True(t, hit)
}

func TestResponseCache_InvalidateCategory(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionGenerateTasks, "a", "", "", sampleResult())
	c.Put(ctx, llm.ActionGenerateTasks, "b", "", "", sampleResult())
	c.Put(ctx, llm.ActionBreakdown, "a", "", "", sampleResult())

	removed, err := c.Invalidate(ctx, Target{Category: llm.ActionGenerateTasks})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// Other categories are untouched.
	_, hit := c.Get(ctx, llm.ActionBreakdown, "a", "", "")
	assert.True(t, hit)

	// Idempotent: the second call matches the empty set and succeeds.
	removed, err = c.Invalidate(ctx, Target{Category: llm.ActionGenerateTasks})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestResponseCache_InvalidateCategoryUser(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionTutor, "q1", "", "u1", sampleResult())
	c.Put(ctx, llm.ActionTutor, "q2", "", "u1", sampleResult())
	c.Put(ctx, llm.ActionTutor, "q1", "", "u2", sampleResult())

	removed, err := c.Invalidate(ctx, Target{Category: llm.ActionTutor, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, hit := c.Get(ctx, llm.ActionTutor, "q1", "", "u2")
	assert.True(t, hit)
}

func TestResponseCache_InvalidateRawPattern(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionGenerateTasks, "a", "", "", sampleResult())

	removed, err := c.Invalidate(ctx, Target{RawPattern: "ai:gen:*"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestResponseCache_InvalidateRejectsAmbiguousTarget(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	_, err := c.Invalidate(ctx, Target{})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = c.Invalidate(ctx, Target{RawPattern: "x:*", Category: llm.ActionChat})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = c.Invalidate(ctx, Target{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResponseCache_Stats(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionGenerateTasks, "a", "", "", sampleResult())
	c.Put(ctx, llm.ActionGenerateTasks, "b", "", "", sampleResult())
	c.Put(ctx, llm.ActionTutor, "q", "", "u1", sampleResult())

	stats := c.Stats(ctx)
	assert.Equal(t, 2, stats.Categories[llm.ActionGenerateTasks].Entries)
	assert.Equal(t, 1, stats.Categories[llm.ActionTutor].Entries)
	assert.Zero(t, stats.Categories[llm.ActionChat].Entries)
	assert.Greater(t, stats.TotalSizeBytes, int64(0))
}

func TestResponseCache_StoreFailureDegradesToMiss(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, llm.ActionGenerateTasks, "a", "", "", sampleResult())
	mr.Close() // redis gone

	// Gets degrade to misses, puts and invalidations are absorbed.
	_, hit := c.Get(ctx, llm.ActionGenerateTasks, "a", "", "")
	assert.False(t, hit)

	c.Put(ctx, llm.ActionGenerateTasks, "b", "", "", sampleResult())

	_, err := c.Invalidate(ctx, Target{Category: llm.ActionGenerateTasks})
	assert.NoError(t, err)
}

func TestPolicyTable_Validation(t *testing.T) {
	_, err := NewPolicyTable(map[llm.ActionCategory]Policy{
		llm.ActionChat: {Namespace: ""},
	})
	assert.Error(t, err)

	_, err = NewPolicyTable(map[llm.ActionCategory]Policy{
		llm.ActionChat:  {Namespace: "ai:x"},
		llm.ActionTutor: {Namespace: "ai:x"},
	})
	assert.Error(t, err)

	table, err := NewPolicyTable(DefaultPolicies())
	require.NoError(t, err)

	assert.Error(t, table.Update(llm.ActionChat, Policy{Namespace: "ai:chat", TTL: -time.Second}))
	assert.Error(t, table.Update(llm.ActionChat, Policy{Namespace: "ai:tut"}))
}

func TestPolicyTable_RuntimeUpdate(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	// Turning chat caching on at runtime takes effect immediately.
	require.NoError(t, c.policies.Update(llm.ActionChat,
		Policy{Enabled: true, TTL: time.Minute, Namespace: "ai:chat"}))

	c.Put(ctx, llm.ActionChat, "hello", "", "u1", sampleResult())
	_, hit := c.Get(ctx, llm.ActionChat, "hello", "", "u1")
	assert.True(t, hit)
}
