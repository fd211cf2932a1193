// Package tokenizer estimates token counts for admission control. Estimates
// are conservative upper bounds, not exact vendor metering: the ledger
// reconciles against actual usage reported by the provider after the call.
package tokenizer

// Tokenizer counts tokens in raw text.
type Tokenizer interface {
	CountTokens(text string) (int, error)
	Name() string
}
