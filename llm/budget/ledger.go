package budget

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyhall/llmroute/llm"
)

// Config carries the default ceilings applied to users without explicit
// overrides. Window defaults to 24 hours.
type Config struct {
	DailyTokenCeiling      int           `yaml:"daily_token_ceiling" json:"daily_token_ceiling"`
	PerRequestTokenCeiling int           `yaml:"per_request_token_ceiling" json:"per_request_token_ceiling"`
	Window                 time.Duration `yaml:"window" json:"window"`
}

// DefaultConfig returns ceilings suited to a single end user of the app.
func DefaultConfig() Config {
	return Config{
		DailyTokenCeiling:      200_000,
		PerRequestTokenCeiling: 8_000,
		Window:                 24 * time.Hour,
	}
}

// Status is a snapshot of one user's ledger entry.
type Status struct {
	UserID            string    `json:"user_id"`
	WindowStart       time.Time `json:"window_start"`
	TokensUsed        int64     `json:"tokens_used"`
	CostCents         int64     `json:"cost_cents"`
	DailyCeiling      int       `json:"daily_ceiling"`
	PerRequestCeiling int       `json:"per_request_ceiling"`
	TokensRemaining   int64     `json:"tokens_remaining"`
}

// entry is the per-user ledger state. All reads and writes go through the
// entry mutex so two concurrent requests from the same user cannot both be
// admitted off the same stale snapshot.
type entry struct {
	mu          sync.Mutex
	windowStart time.Time
	tokensUsed  int64
	costCents   int64
	daily       int
	perRequest  int
}

// Ledger tracks token consumption per user. Entries are created lazily on a
// user's first request; the authoritative state is in-process.
type Ledger struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry

	now func() time.Time
}

// NewLedger creates a ledger with the given default ceilings.
func NewLedger(config Config, logger *zap.Logger) *Ledger {
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	return &Ledger{
		config:  config,
		logger:  logger.With(zap.String("component", "budget")),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (l *Ledger) entryFor(userID string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		e = &entry{
			windowStart: l.now(),
			daily:       l.config.DailyTokenCeiling,
			perRequest:  l.config.PerRequestTokenCeiling,
		}
		l.entries[userID] = e
	}
	return e
}

// resetIfStale rolls the window forward when it has fully elapsed. Must be
// called with e.mu held. Consumption figures never reflect a stale window.
func (l *Ledger) resetIfStale(e *entry) {
	if l.now().Sub(e.windowStart) >= l.config.Window {
		e.windowStart = l.now()
		e.tokensUsed = 0
		e.costCents = 0
	}
}

// CheckAdmission decides whether a request estimated at estimatedTokens may
// proceed. It must run before any provider call: it is a pre-flight gate,
// not a post-hoc accounting step. Rejections are typed *llm.Error values.
func (l *Ledger) CheckAdmission(userID string, estimatedTokens int) error {
	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	l.resetIfStale(e)

	if estimatedTokens > e.perRequest {
		return llm.NewError(llm.ErrPerRequestCeiling,
			fmt.Sprintf("estimated %d tokens exceeds per-request ceiling %d", estimatedTokens, e.perRequest))
	}
	if e.tokensUsed+int64(estimatedTokens) > int64(e.daily) {
		return llm.NewError(llm.ErrDailyBudgetExhausted,
			fmt.Sprintf("daily budget exhausted: %d used of %d, %d estimated", e.tokensUsed, e.daily, estimatedTokens))
	}
	return nil
}

// RecordUsage books actual consumption after a successful generation. Actual
// tokens may exceed the pre-flight estimate; the ledger reflects reality.
func (l *Ledger) RecordUsage(userID string, actualTokens int, costCents int64) {
	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	l.resetIfStale(e)
	e.tokensUsed += int64(actualTokens)
	e.costCents += costCents

	l.logger.Debug("usage recorded",
		zap.String("user_id", userID),
		zap.Int("tokens", actualTokens),
		zap.Int64("cost_cents", costCents),
		zap.Int64("window_total", e.tokensUsed))
}

// Status returns the current window snapshot for a user.
func (l *Ledger) Status(userID string) Status {
	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	l.resetIfStale(e)

	remaining := int64(e.daily) - e.tokensUsed
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		UserID:            userID,
		WindowStart:       e.windowStart,
		TokensUsed:        e.tokensUsed,
		CostCents:         e.costCents,
		DailyCeiling:      e.daily,
		PerRequestCeiling: e.perRequest,
		TokensRemaining:   remaining,
	}
}

// SetLimits overrides the ceilings for a single user without restart.
func (l *Ledger) SetLimits(userID string, dailyCeiling, perRequestCeiling int) {
	e := l.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.daily = dailyCeiling
	e.perRequest = perRequestCeiling

	l.logger.Info("budget limits updated",
		zap.String("user_id", userID),
		zap.Int("daily_ceiling", dailyCeiling),
		zap.Int("per_request_ceiling", perRequestCeiling))
}
