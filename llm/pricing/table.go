// Package pricing holds the static per-provider, per-model cost table used to
// turn token counts into integer-cent amounts.
package pricing

import "sync"

// ModelPrice is the price of one model at one provider, in cents per 1K
// tokens. Monetary values are integer cents throughout the engine; fractional
// sub-cent pricing is rounded up at calculation time, never stored.
type ModelPrice struct {
	Provider         string
	Model            string
	InputCentsPer1K  int64
	OutputCentsPer1K int64
}

// Table maps provider:model to prices. The defaults can be overridden from
// configuration at startup or retuned at runtime.
type Table struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewTable creates a cost table preloaded with the built-in defaults.
func NewTable() *Table {
	t := &Table{prices: make(map[string]ModelPrice)}
	for _, p := range defaultPrices {
		t.Set(p)
	}
	return t
}

var defaultPrices = []ModelPrice{
	{Provider: "openai", Model: "gpt-4o-mini", InputCentsPer1K: 1, OutputCentsPer1K: 1},
	{Provider: "openai", Model: "gpt-4o", InputCentsPer1K: 1, OutputCentsPer1K: 2},
	{Provider: "deepseek", Model: "deepseek-coder", InputCentsPer1K: 1, OutputCentsPer1K: 1},
	{Provider: "anthropic", Model: "claude-sonnet-4-5", InputCentsPer1K: 1, OutputCentsPer1K: 2},
}

// Set inserts or replaces a price entry.
func (t *Table) Set(p ModelPrice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[p.Provider+":"+p.Model] = p
}

// Get returns the price entry for provider:model, if known.
func (t *Table) Get(provider, model string) (ModelPrice, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.prices[provider+":"+model]
	return p, ok
}

// Cost computes the integer-cent cost of a call. Unknown models cost zero:
// admission control still meters their tokens, so an unpriced model cannot
// bypass the ledger.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) int64 {
	p, ok := t.Get(provider, model)
	if !ok {
		return 0
	}
	return ceilDiv(int64(inputTokens)*p.InputCentsPer1K, 1000) +
		ceilDiv(int64(outputTokens)*p.OutputCentsPer1K, 1000)
}

// Update replaces prices in bulk, typically from configuration.
func (t *Table) Update(prices []ModelPrice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range prices {
		t.prices[p.Provider+":"+p.Model] = p
	}
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
