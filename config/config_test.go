package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall/llmroute/llm"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
redis:
  addr: redis.internal:6380
budget:
  daily_token_ceiling: 50000
  per_request_token_ceiling: 4000
router:
  code_confidence_threshold: 0.75
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 50_000, cfg.Budget.DailyTokenCeiling)
	assert.Equal(t, 0.75, cfg.Router.CodeConfidenceThreshold)
	// Untouched sections keep their defaults.
	assert.Len(t, cfg.Providers, 3)
	assert.Equal(t, 24*time.Hour, cfg.Budget.Window)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("LLMROUTE_REDIS_ADDR", "from-env:6379")
	t.Setenv("LLMROUTE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidate_ProviderInvariants(t *testing.T) {
	cfg := Default()
	cfg.Providers = nil
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Providers[0].Name = cfg.Providers[1].Name
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Providers[0].Capabilities = nil
	assert.Error(t, cfg.Validate())

	cfg = Default()
	for i := range cfg.Providers {
		cfg.Providers[i].Capabilities = []llm.Capability{llm.CapabilityGeneral}
	}
	assert.Error(t, cfg.Validate(), "a frontier provider is mandatory")
}

func TestValidate_PolicyInvariants(t *testing.T) {
	cfg := Default()
	p := cfg.Policies[llm.ActionTutor]
	p.Namespace = cfg.Policies[llm.ActionChat].Namespace
	cfg.Policies[llm.ActionTutor] = p
	assert.Error(t, cfg.Validate())
}

func TestPriceTable_DescriptorAndOverridePrecedence(t *testing.T) {
	cfg := Default()
	cfg.Providers[1].InputCentsPer1K = 3
	cfg.Providers[1].OutputCentsPer1K = 5

	table := cfg.PriceTable()
	price, ok := table.Get("openai", "gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, int64(3), price.InputCentsPer1K)
	assert.Equal(t, int64(5), price.OutputCentsPer1K)
}

func TestLogConfig_Build(t *testing.T) {
	logger, err := LogConfig{Level: "info", Format: "json"}.Build()
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = LogConfig{Level: "loud"}.Build()
	assert.Error(t, err)
}
