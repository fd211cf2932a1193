package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/studyhall/llmroute/llm"
	"github.com/studyhall/llmroute/llm/pricing"
)

const (
	defaultTimeout  = 30 * time.Second
	completionsPath = "/v1/chat/completions"
)

// Adapter speaks the OpenAI-compatible chat completions protocol for one
// configured provider. Construction reads the API key once; per-call rate
// limiting and the request timeout both come from the descriptor.
type Adapter struct {
	desc    llm.ProviderDescriptor
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	prices  *pricing.Table
	logger  *zap.Logger
}

// NewAdapter builds an adapter from a provider descriptor. The pricing table
// may be shared across adapters; unknown models simply cost zero.
func NewAdapter(desc llm.ProviderDescriptor, prices *pricing.Table, logger *zap.Logger) (*Adapter, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("providers: descriptor missing name")
	}
	if desc.BaseURL == "" {
		return nil, fmt.Errorf("providers: %s: descriptor missing base URL", desc.Name)
	}
	if desc.Model == "" {
		return nil, fmt.Errorf("providers: %s: descriptor missing model", desc.Name)
	}

	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var apiKey string
	if desc.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(desc.APIKeyEnv))
		if apiKey == "" {
			logger.Warn("provider API key env is empty",
				zap.String("provider", desc.Name),
				zap.String("env", desc.APIKeyEnv))
		}
	}

	var limiter *rate.Limiter
	if desc.RequestsPerSecond > 0 {
		burst := int(desc.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(desc.RequestsPerSecond), burst)
	}

	return &Adapter{
		desc:    desc,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		prices:  prices,
		logger:  logger.With(zap.String("component", "provider"), zap.String("provider", desc.Name)),
	}, nil
}

// Name returns the provider's configured name.
func (a *Adapter) Name() string { return a.desc.Name }

// Descriptor returns a copy of the adapter's configuration.
func (a *Adapter) Descriptor() llm.ProviderDescriptor { return a.desc }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate performs one chat completion. Transport failures and non-2xx
// statuses come back as *llm.Error values classified from structure alone.
func (a *Adapter) Generate(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, llm.NewError(llm.ErrInvalidRequest, "empty prompt").WithProvider(a.desc.Name)
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, mapTransportError(err, a.desc.Name)
		}
	}

	maxTokens := req.MaxTokens
	if a.desc.MaxTokensPerRequest > 0 && maxTokens > a.desc.MaxTokensPerRequest {
		maxTokens = a.desc.MaxTokensPerRequest
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       a.desc.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("providers: marshal request: %w", err)
	}

	url := strings.TrimRight(a.desc.BaseURL, "/") + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("providers: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err, a.desc.Name)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		mapped := mapHTTPError(resp.StatusCode, msg, a.desc.Name, parseRetryAfter(resp.Header))
		a.logger.Warn("upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("code", string(mapped.Code)),
			zap.Duration("latency", time.Since(start)))
		return nil, mapped
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, llm.NewError(llm.ErrUnavailable, "malformed upstream response").
			WithProvider(a.desc.Name).
			WithRetryable(true).
			WithCause(err)
	}
	if len(out.Choices) == 0 {
		return nil, llm.NewError(llm.ErrUnavailable, "upstream returned no choices").
			WithProvider(a.desc.Name).
			WithRetryable(true)
	}

	total := out.Usage.TotalTokens
	if total == 0 {
		total = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}

	cost := a.prices.Cost(a.desc.Name, a.desc.Model, out.Usage.PromptTokens, out.Usage.CompletionTokens)

	a.logger.Debug("completion served",
		zap.Int("tokens", total),
		zap.Int64("cost_cents", cost),
		zap.Duration("latency", time.Since(start)))

	return &llm.GenerationResult{
		Output:     out.Choices[0].Message.Content,
		TokensUsed: total,
		CostCents:  cost,
		Provider:   a.desc.Name,
		Model:      a.desc.Model,
	}, nil
}
