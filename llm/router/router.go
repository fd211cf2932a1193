// Package router selects a provider chain for each generation request and
// executes it with admission control, response caching, and fallback
// escalation. Routing depends only on capability tags; adding a backend means
// registering one more descriptor, never touching chain logic.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/studyhall/llmroute/llm"
	"github.com/studyhall/llmroute/llm/budget"
	"github.com/studyhall/llmroute/llm/cache"
	"github.com/studyhall/llmroute/llm/classify"
	"github.com/studyhall/llmroute/llm/observability"
	"github.com/studyhall/llmroute/llm/tokenizer"
)

// Config tunes routing behavior. Zero values fall back to the defaults.
type Config struct {
	// CodeConfidenceThreshold is the classifier confidence above which a
	// request is routed to code-specialized providers first.
	CodeConfidenceThreshold float64 `yaml:"code_confidence_threshold" json:"code_confidence_threshold"`

	// BaseBackoff is the pause before the second attempt in a chain; later
	// attempts scale it by their chain position.
	BaseBackoff time.Duration `yaml:"base_backoff" json:"base_backoff"`

	// OutputBudgets are the per-category conservative output token estimates
	// used for admission when the caller does not supply MaxTokens.
	OutputBudgets map[llm.ActionCategory]int `yaml:"output_budgets" json:"output_budgets"`
}

const (
	defaultCodeConfidenceThreshold = 0.6
	defaultBaseBackoff             = 100 * time.Millisecond
	defaultOutputBudget            = 1000
)

// DefaultConfig returns the default routing configuration.
func DefaultConfig() Config {
	return Config{
		CodeConfidenceThreshold: defaultCodeConfidenceThreshold,
		BaseBackoff:             defaultBaseBackoff,
		OutputBudgets: map[llm.ActionCategory]int{
			llm.ActionGenerateTasks: 1200,
			llm.ActionBreakdown:     800,
			llm.ActionTutor:         1000,
			llm.ActionChat:          600,
		},
	}
}

// Attempt records one failed provider call within a chain.
type Attempt struct {
	Provider string        `json:"provider"`
	Code     llm.ErrorCode `json:"code"`
	Err      error         `json:"-"`
}

// ChainFailure aggregates the per-provider failures of an exhausted chain.
// It travels as the Cause of the CHAIN_EXHAUSTED error.
type ChainFailure struct {
	Attempts []Attempt
}

func (f *ChainFailure) Error() string {
	parts := make([]string, len(f.Attempts))
	for i, a := range f.Attempts {
		parts[i] = fmt.Sprintf("%s(%s)", a.Provider, a.Code)
	}
	return "attempts: " + strings.Join(parts, ", ")
}

// Router owns the full request path: ledger gate, cache lookup, classifier,
// chain execution, usage recording. A single Router instance serves all
// concurrent callers.
type Router struct {
	providers []llm.Provider // fixed configuration order
	ledger    *budget.Ledger
	cache     *cache.ResponseCache
	tok       tokenizer.Tokenizer
	metrics   *observability.Metrics
	config    Config
	logger    *zap.Logger

	// sleep is swapped out in tests so escalation does not wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Router over the given providers. Provider order is the
// configuration order and is the tie break between providers with equal
// capability tags.
func New(providers []llm.Provider, ledger *budget.Ledger, responseCache *cache.ResponseCache, tok tokenizer.Tokenizer, metrics *observability.Metrics, config Config, logger *zap.Logger) (*Router, error) {
	if len(providers) == 0 {
		return nil, errors.New("router: no providers configured")
	}
	if config.CodeConfidenceThreshold <= 0 {
		config.CodeConfidenceThreshold = defaultCodeConfidenceThreshold
	}
	if config.BaseBackoff < 0 {
		config.BaseBackoff = defaultBaseBackoff
	}
	if config.OutputBudgets == nil {
		config.OutputBudgets = DefaultConfig().OutputBudgets
	}

	return &Router{
		providers: providers,
		ledger:    ledger,
		cache:     responseCache,
		tok:       tok,
		metrics:   metrics,
		config:    config,
		logger:    logger.With(zap.String("component", "router")),
		sleep:     sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Route executes one generation request: admission, cache, classification,
// chain escalation, accounting. It fails only on admission rejection, an
// invalid request, or chain exhaustion; cache trouble never surfaces.
func (r *Router) Route(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error) {
	requestID := uuid.NewString()
	logger := r.logger.With(
		zap.String("request_id", requestID),
		zap.String("category", string(req.Category)),
		zap.String("user_id", req.UserID))

	start := time.Now()
	attrs := observability.RouteAttrs{Category: string(req.Category), UserID: req.UserID}
	var span trace.Span
	if r.metrics != nil {
		ctx, span = r.metrics.StartRoute(ctx, attrs)
	}
	finish := func(res *llm.GenerationResult, err error, fallbacks int) {
		if r.metrics == nil {
			return
		}
		outcome := observability.RouteOutcome{
			Status:    "ok",
			Duration:  time.Since(start),
			Fallbacks: fallbacks,
		}
		if err != nil {
			outcome.Status = "error"
			outcome.ErrorCode = string(llm.CodeOf(err))
		} else {
			outcome.Provider = res.Provider
			outcome.Model = res.Model
			outcome.Tokens = res.TokensUsed
			outcome.CostCents = res.CostCents
			outcome.CacheHit = res.ServedFromCache
		}
		r.metrics.EndRoute(ctx, span, attrs, outcome)
	}

	estimate := r.estimateTokens(req)
	if err := r.ledger.CheckAdmission(req.UserID, estimate); err != nil {
		logger.Info("admission rejected",
			zap.Int("estimated_tokens", estimate),
			zap.String("code", string(llm.CodeOf(err))))
		if r.metrics != nil {
			r.metrics.RecordAdmissionRejected(ctx, string(req.Category), string(llm.CodeOf(err)))
		}
		finish(nil, err, 0)
		return nil, err
	}

	if res, hit := r.cache.Get(ctx, req.Category, req.Prompt, req.SystemPrompt, req.UserID); hit {
		res.RequestID = requestID
		logger.Debug("served from cache", zap.Duration("elapsed", time.Since(start)))
		finish(res, nil, 0)
		return res, nil
	}

	verdict := classify.Classify(req.Prompt, req.SystemPrompt)
	chain := r.buildChain(verdict)
	if len(chain) == 0 {
		err := llm.NewError(llm.ErrUnavailable, "no providers available for request")
		finish(nil, err, 0)
		return nil, err
	}

	res, attempts, err := r.executeChain(ctx, logger, chain, req)
	if err != nil {
		finish(nil, err, len(attempts))
		return nil, err
	}

	r.ledger.RecordUsage(req.UserID, res.TokensUsed, res.CostCents)
	r.cache.Put(ctx, req.Category, req.Prompt, req.SystemPrompt, req.UserID, res)

	res.RequestID = requestID
	logger.Info("request served",
		zap.String("provider", res.Provider),
		zap.Int("tokens", res.TokensUsed),
		zap.Int64("cost_cents", res.CostCents),
		zap.Int("fallbacks", len(attempts)),
		zap.Duration("elapsed", time.Since(start)))
	finish(res, nil, len(attempts))
	return res, nil
}

// estimateTokens produces the conservative pre-flight estimate: counted
// prompt tokens plus the caller's MaxTokens, or the category's default output
// budget when the caller did not cap output.
func (r *Router) estimateTokens(req *llm.GenerationRequest) int {
	prompt := req.SystemPrompt + "\n" + req.Prompt
	promptTokens, err := r.tok.CountTokens(prompt)
	if err != nil {
		// Crude upper bound keeps admission conservative when the tokenizer
		// cannot handle the input.
		promptTokens = len(prompt)/3 + 1
	}

	output := req.MaxTokens
	if output <= 0 {
		output = r.config.OutputBudgets[req.Category]
		if output <= 0 {
			output = defaultOutputBudget
		}
	}
	return promptTokens + output
}

// buildChain resolves the ordered provider chain for a classification
// verdict. Frontier providers always come last regardless of their other
// tags; within one capability class, configuration order decides.
func (r *Router) buildChain(verdict classify.Verdict) []llm.Provider {
	classes := []llm.Capability{llm.CapabilityGeneral}
	if verdict.IsCode && verdict.Confidence >= r.config.CodeConfidenceThreshold {
		classes = []llm.Capability{llm.CapabilityCode, llm.CapabilityGeneral}
	}

	chain := make([]llm.Provider, 0, len(r.providers))
	seen := make(map[string]bool, len(r.providers))

	for _, class := range classes {
		for _, p := range r.providers {
			d := p.Descriptor()
			if seen[p.Name()] || d.Has(llm.CapabilityFrontier) || !d.Has(class) {
				continue
			}
			seen[p.Name()] = true
			chain = append(chain, p)
		}
	}
	for _, p := range r.providers {
		if !seen[p.Name()] && p.Descriptor().Has(llm.CapabilityFrontier) {
			seen[p.Name()] = true
			chain = append(chain, p)
		}
	}
	return chain
}

// executeChain tries each provider in order, escalating on recoverable
// failures with a backoff that grows with chain position. InvalidRequest
// aborts immediately; an exhausted chain yields the aggregate error.
func (r *Router) executeChain(ctx context.Context, logger *zap.Logger, chain []llm.Provider, req *llm.GenerationRequest) (*llm.GenerationResult, []Attempt, error) {
	var attempts []Attempt

	for i, p := range chain {
		if i > 0 {
			if err := r.sleep(ctx, time.Duration(i)*r.config.BaseBackoff); err != nil {
				return nil, attempts, llm.NewError(llm.ErrUnavailable, "request cancelled during escalation").WithCause(err)
			}
		}

		res, err := p.Generate(ctx, req)
		if err == nil {
			return res, attempts, nil
		}

		code := llm.CodeOf(err)
		if code == llm.ErrInvalidRequest {
			logger.Warn("invalid request, aborting chain",
				zap.String("provider", p.Name()),
				zap.Error(err))
			return nil, attempts, err
		}
		if code == "" {
			code = llm.ErrUnknown
		}

		attempts = append(attempts, Attempt{Provider: p.Name(), Code: code, Err: err})
		logger.Warn("provider failed, escalating",
			zap.String("provider", p.Name()),
			zap.String("code", string(code)),
			zap.Int("position", i),
			zap.Error(err))
	}

	failure := &ChainFailure{Attempts: attempts}
	logger.Error("provider chain exhausted",
		zap.Int("providers_tried", len(attempts)),
		zap.String("attempts", failure.Error()))
	return nil, attempts, llm.NewError(llm.ErrChainExhausted,
		fmt.Sprintf("all %d providers failed", len(attempts))).WithCause(failure)
}

// InvalidateCache removes cached entries matching the target.
func (r *Router) InvalidateCache(ctx context.Context, target cache.Target) (int, error) {
	return r.cache.Invalidate(ctx, target)
}

// CacheStats reports per-category cache statistics.
func (r *Router) CacheStats(ctx context.Context) cache.Stats {
	return r.cache.Stats(ctx)
}

// BudgetStatus reports a user's current window consumption.
func (r *Router) BudgetStatus(userID string) budget.Status {
	return r.ledger.Status(userID)
}

// UpdateCachePolicy retunes one category's cache policy at runtime.
func (r *Router) UpdateCachePolicy(category llm.ActionCategory, policy cache.Policy) error {
	return r.cache.UpdatePolicy(category, policy)
}
