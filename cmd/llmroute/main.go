// llmroute validates a routing engine configuration and wires the full
// engine against the configured store without issuing provider calls.
//
// Usage:
//
//	llmroute check                      # validate the built-in defaults
//	llmroute check --config config.yaml # validate a config file
//	llmroute check --memory             # wire against the in-memory store
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/studyhall/llmroute/config"
	store "github.com/studyhall/llmroute/internal/cache"
	"github.com/studyhall/llmroute/internal/metrics"
	"github.com/studyhall/llmroute/llm"
	"github.com/studyhall/llmroute/llm/budget"
	rcache "github.com/studyhall/llmroute/llm/cache"
	"github.com/studyhall/llmroute/llm/classify"
	"github.com/studyhall/llmroute/llm/observability"
	"github.com/studyhall/llmroute/llm/providers"
	"github.com/studyhall/llmroute/llm/router"
	"github.com/studyhall/llmroute/llm/tokenizer"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "check" {
		fmt.Fprintln(os.Stderr, "usage: llmroute check [--config file] [--memory]")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	useMemory := fs.Bool("memory", false, "wire against the in-memory store instead of redis")
	_ = fs.Parse(os.Args[2:])

	if err := run(*configPath, *useMemory); err != nil {
		fmt.Fprintln(os.Stderr, "check failed:", err)
		os.Exit(1)
	}
	fmt.Println("configuration ok")
}

func run(configPath string, useMemory bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var s store.Store
	if useMemory {
		s = store.NewMemoryStore()
	} else {
		s, err = store.NewRedisStore(cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	defer func() { _ = s.Close() }()

	prices := cfg.PriceTable()
	adapters := make([]llm.Provider, 0, len(cfg.Providers))
	for _, desc := range cfg.Providers {
		a, err := providers.NewAdapter(desc, prices, logger)
		if err != nil {
			return err
		}
		adapters = append(adapters, a)
	}

	var tok tokenizer.Tokenizer = tokenizer.NewEstimator()
	if cfg.TokenizerModel != "" {
		tok = tokenizer.NewTiktoken(cfg.TokenizerModel)
	}

	policies, err := rcache.NewPolicyTable(cfg.Policies)
	if err != nil {
		return err
	}
	responseCache := rcache.New(s, policies, cfg.Cache, logger)

	prom := metrics.NewCollector("llmroute", prometheus.NewRegistry(), logger)
	obs, err := observability.NewMetrics(prom)
	if err != nil {
		return err
	}

	ledger := budget.NewLedger(cfg.Budget, logger)
	eng, err := router.New(adapters, ledger, responseCache, tok, obs, cfg.Router, logger)
	if err != nil {
		return err
	}

	return smoke(eng, tok, logger)
}

// smoke exercises the offline parts of the wired engine: store connectivity,
// classifier sanity, key determinism, and the admin surface.
func smoke(eng *router.Router, tok tokenizer.Tokenizer, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if v := classify.Classify("```go\nfunc main() {}\n```", ""); !v.IsCode {
		return fmt.Errorf("classifier smoke check failed: fenced code not detected")
	}
	if v := classify.Classify("summarize this week's biology notes", ""); v.IsCode {
		return fmt.Errorf("classifier smoke check failed: prose classified as code")
	}

	p := rcache.Policy{Enabled: true, Namespace: "ai:smoke"}
	if rcache.BuildKey(p, "x", "y", "") != rcache.BuildKey(p, "x", "y", "") {
		return fmt.Errorf("cache key smoke check failed: key derivation not deterministic")
	}

	if _, err := tok.CountTokens("smoke test prompt"); err != nil {
		return fmt.Errorf("tokenizer %s: %w", tok.Name(), err)
	}

	stats := eng.CacheStats(ctx)
	logger.Info("engine wired",
		zap.Int("cache_categories", len(stats.Categories)),
		zap.Int64("cache_size_bytes", stats.TotalSizeBytes),
		zap.String("tokenizer", tok.Name()))
	return nil
}
