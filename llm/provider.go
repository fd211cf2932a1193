package llm

import (
	"context"
	"time"
)

// Capability tags what a backend is good at. The router depends only on
// these tags, never on concrete provider identity: adding a backend means
// registering one more descriptor, not touching routing logic.
type Capability string

const (
	// CapabilityGeneral marks a general-purpose conversational model.
	CapabilityGeneral Capability = "general"
	// CapabilityCode marks a code-specialized model.
	CapabilityCode Capability = "code"
	// CapabilityFrontier marks the high-capability, high-cost model used as
	// the last-resort fallback.
	CapabilityFrontier Capability = "frontier"
)

// ProviderDescriptor is the static per-backend configuration, loaded at
// startup and immutable for the process lifetime.
type ProviderDescriptor struct {
	Name         string        `yaml:"name" json:"name"`
	Model        string        `yaml:"model" json:"model"`
	Capabilities []Capability  `yaml:"capabilities" json:"capabilities"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`

	// Pricing in integer cents per 1K tokens.
	InputCentsPer1K  int64 `yaml:"input_cents_per_1k" json:"input_cents_per_1k"`
	OutputCentsPer1K int64 `yaml:"output_cents_per_1k" json:"output_cents_per_1k"`

	// MaxTokensPerRequest caps a single call to this backend.
	MaxTokensPerRequest int `yaml:"max_tokens_per_request" json:"max_tokens_per_request"`

	// RequestsPerSecond is the client-side rate limit; zero disables it.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// Has reports whether the descriptor carries the given capability tag.
func (d ProviderDescriptor) Has(cap Capability) bool {
	for _, c := range d.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Provider is the uniform adapter contract the router escalates across.
// Generate performs one network call and returns either a normalized result
// or a *Error classified by the taxonomy in error.go.
type Provider interface {
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
	Name() string
	Descriptor() ProviderDescriptor
}
