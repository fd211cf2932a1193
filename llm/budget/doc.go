// Package budget enforces per-user token consumption limits. The ledger is a
// pre-flight admission gate: it rejects a request before any provider call is
// issued, then records actual usage after a successful generation.
//
// Usage is metered against a rolling 24-hour window anchored to first use.
// Admission runs on conservative estimates; actuals may land slightly above a
// ceiling for the request that crossed it. That drift is accepted in exchange
// for not metering tokens exactly before the call.
package budget
