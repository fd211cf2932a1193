package llm

import "time"

// ActionCategory identifies the kind of generation a caller is asking for.
// Each category maps to exactly one cache policy and one default output
// token budget.
type ActionCategory string

const (
	ActionGenerateTasks ActionCategory = "generate-tasks"
	ActionBreakdown     ActionCategory = "breakdown"
	ActionTutor         ActionCategory = "tutor"
	ActionChat          ActionCategory = "chat"
)

// GenerationRequest is the immutable input to a single Route call.
// Callers create one per invocation and never mutate it afterwards.
type GenerationRequest struct {
	Category     ActionCategory    `json:"category"`
	Prompt       string            `json:"prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	MaxTokens    int               `json:"max_tokens,omitempty"`
	Temperature  float32           `json:"temperature,omitempty"`
	UserID       string            `json:"user_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// GenerationResult is the normalized outcome of a generation, produced by a
// provider adapter or reconstructed from a cache hit. It is self-describing:
// the provider and model that served it travel with the value.
type GenerationResult struct {
	Output          string    `json:"output"`
	TokensUsed      int       `json:"tokens_used"`
	CostCents       int64     `json:"cost_cents"`
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	ServedFromCache bool      `json:"served_from_cache"`
	CachedAt        time.Time `json:"cached_at,omitempty"`

	// RequestID is stamped per Route call for log correlation. It is never
	// cached; a cache hit gets the ID of the call that retrieved it.
	RequestID string `json:"request_id,omitempty"`
}
