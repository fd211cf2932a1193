// Package mocks holds test doubles shared across package test suites.
package mocks

import (
	"context"
	"sync"

	"github.com/studyhall/llmroute/llm"
)

// Provider is a mock llm.Provider supporting fixed responses, error
// injection, scripted error sequences, and call recording. It is safe for
// concurrent use.
type Provider struct {
	mu sync.Mutex

	desc     llm.ProviderDescriptor
	response *llm.GenerationResult
	err      error

	// errSequence takes priority over err: call N returns errSequence[N]
	// (nil meaning success) until the script runs out.
	errSequence []error

	generateFunc func(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error)

	calls []*llm.GenerationRequest
}

// NewProvider creates a mock provider with the given name and capability
// tags, serving a canned successful result by default.
func NewProvider(name string, caps ...llm.Capability) *Provider {
	return &Provider{
		desc: llm.ProviderDescriptor{
			Name:         name,
			Model:        name + "-model",
			Capabilities: caps,
		},
		response: &llm.GenerationResult{
			Output:     "mock response from " + name,
			TokensUsed: 100,
			CostCents:  1,
			Provider:   name,
			Model:      name + "-model",
		},
	}
}

// WithResponse sets the result returned on success.
func (p *Provider) WithResponse(res *llm.GenerationResult) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.response = res
	return p
}

// WithError makes every call fail with err.
func (p *Provider) WithError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// WithErrorSequence scripts per-call outcomes: the Nth call returns errs[N],
// nil entries succeed, and calls past the end of the script succeed.
func (p *Provider) WithErrorSequence(errs ...error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errSequence = errs
	return p
}

// WithGenerateFunc overrides Generate entirely.
func (p *Provider) WithGenerateFunc(fn func(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error)) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generateFunc = fn
	return p
}

// Generate records the call and serves the configured behavior.
func (p *Provider) Generate(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResult, error) {
	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, req)
	fn := p.generateFunc
	err := p.err
	if n < len(p.errSequence) {
		err = p.errSequence[n]
	}
	res := p.response
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	out := *res
	return &out, nil
}

// Name returns the mock's configured name.
func (p *Provider) Name() string { return p.desc.Name }

// Descriptor returns the mock's descriptor.
func (p *Provider) Descriptor() llm.ProviderDescriptor { return p.desc }

// CallCount reports how many times Generate was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Calls returns a copy of the recorded requests.
func (p *Provider) Calls() []*llm.GenerationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*llm.GenerationRequest, len(p.calls))
	copy(out, p.calls)
	return out
}
