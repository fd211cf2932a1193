// Package config loads the engine configuration. Precedence is defaults,
// then the YAML file, then a small set of environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	store "github.com/studyhall/llmroute/internal/cache"
	"github.com/studyhall/llmroute/llm"
	"github.com/studyhall/llmroute/llm/budget"
	rcache "github.com/studyhall/llmroute/llm/cache"
	"github.com/studyhall/llmroute/llm/pricing"
	"github.com/studyhall/llmroute/llm/router"
)

// envPrefix scopes the environment overrides.
const envPrefix = "LLMROUTE_"

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// Build constructs a zap logger from the config.
func (l LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("config: invalid log level %q: %w", l.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if l.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Config is the full engine configuration, constructed once at startup and
// threaded explicitly through the component constructors.
type Config struct {
	Log       LogConfig                            `yaml:"log"`
	Redis     store.RedisConfig                    `yaml:"redis"`
	Providers []llm.ProviderDescriptor             `yaml:"providers"`
	Budget    budget.Config                        `yaml:"budget"`
	Cache     rcache.Config                        `yaml:"cache"`
	Policies  map[llm.ActionCategory]rcache.Policy `yaml:"cache_policies"`
	Router    router.Config                        `yaml:"router"`
	Prices    []pricing.ModelPrice                 `yaml:"prices"`

	// TokenizerModel selects exact token counting for that model family;
	// empty falls back to the rune-class estimator.
	TokenizerModel string `yaml:"tokenizer_model"`
}

// Default returns the built-in configuration: local redis, the stock cache
// policies, and a three-tier provider set read from the usual env keys.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "json"},
		Redis: store.DefaultRedisConfig(),
		Providers: []llm.ProviderDescriptor{
			{
				Name:         "deepseek",
				Model:        "deepseek-coder",
				Capabilities: []llm.Capability{llm.CapabilityCode},
				BaseURL:      "https://api.deepseek.com",
				APIKeyEnv:    "DEEPSEEK_API_KEY",
				Timeout:      30 * time.Second,
			},
			{
				Name:         "openai",
				Model:        "gpt-4o-mini",
				Capabilities: []llm.Capability{llm.CapabilityGeneral},
				BaseURL:      "https://api.openai.com",
				APIKeyEnv:    "OPENAI_API_KEY",
				Timeout:      30 * time.Second,
			},
			{
				Name:         "anthropic",
				Model:        "claude-sonnet-4-5",
				Capabilities: []llm.Capability{llm.CapabilityFrontier},
				BaseURL:      "https://api.anthropic.com",
				APIKeyEnv:    "ANTHROPIC_API_KEY",
				Timeout:      60 * time.Second,
			},
		},
		Budget:   budget.DefaultConfig(),
		Cache:    rcache.DefaultConfig(),
		Policies: rcache.DefaultPolicies(),
		Router:   router.DefaultConfig(),
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envPrefix + "REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(envPrefix + "REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the invariants the components assume.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}

	names := make(map[string]bool, len(c.Providers))
	hasFrontier := false
	for _, p := range c.Providers {
		if p.Name == "" || p.Model == "" || p.BaseURL == "" {
			return fmt.Errorf("config: provider %q: name, model, and base_url are required", p.Name)
		}
		if names[p.Name] {
			return fmt.Errorf("config: duplicate provider name %q", p.Name)
		}
		names[p.Name] = true
		if len(p.Capabilities) == 0 {
			return fmt.Errorf("config: provider %q: at least one capability tag is required", p.Name)
		}
		if p.Has(llm.CapabilityFrontier) {
			hasFrontier = true
		}
	}
	if !hasFrontier {
		return fmt.Errorf("config: a frontier-tagged provider is required as the last-resort fallback")
	}

	if c.Budget.DailyTokenCeiling <= 0 || c.Budget.PerRequestTokenCeiling <= 0 {
		return fmt.Errorf("config: budget ceilings must be positive")
	}

	// Policy invariants are fully checked by the policy table constructor.
	if _, err := rcache.NewPolicyTable(c.Policies); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// PriceTable builds the cost table: built-in defaults, then per-descriptor
// prices, then explicit overrides from the prices section.
func (c Config) PriceTable() *pricing.Table {
	t := pricing.NewTable()
	for _, p := range c.Providers {
		if p.InputCentsPer1K > 0 || p.OutputCentsPer1K > 0 {
			t.Set(pricing.ModelPrice{
				Provider:         p.Name,
				Model:            p.Model,
				InputCentsPer1K:  p.InputCentsPer1K,
				OutputCentsPer1K: p.OutputCentsPer1K,
			})
		}
	}
	t.Update(c.Prices)
	return t
}
