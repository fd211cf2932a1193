// Package llm defines the core value types and contracts of the generation
// engine: requests and results, the provider abstraction, and the unified
// error taxonomy shared by the router, cache, and budget ledger.
//
// The package holds no state and performs no I/O. Concrete behavior lives in
// the subpackages: classify, pricing, tokenizer, budget, cache, providers,
// and router.
package llm
