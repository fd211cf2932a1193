package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/studyhall/llmroute/llm"
)

// Policy is the per-action-category caching rule. PerUser scopes entries to
// the requesting user instead of sharing them globally; which categories are
// user-scoped is an explicit configuration decision, not a guessed rule.
type Policy struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
	Namespace string        `yaml:"namespace" json:"namespace"`
	PerUser   bool          `yaml:"per_user" json:"per_user"`
}

// DefaultPolicies returns the built-in per-category policies. Tutoring is
// user-scoped because answers build on a student's own material; chat is not
// cached at all since conversations are never deterministic enough.
func DefaultPolicies() map[llm.ActionCategory]Policy {
	return map[llm.ActionCategory]Policy{
		llm.ActionGenerateTasks: {Enabled: true, TTL: 24 * time.Hour, Namespace: "ai:gen"},
		llm.ActionBreakdown:     {Enabled: true, TTL: 24 * time.Hour, Namespace: "ai:brk"},
		llm.ActionTutor:         {Enabled: true, TTL: time.Hour, Namespace: "ai:tut", PerUser: true},
		llm.ActionChat:          {Enabled: false, Namespace: "ai:chat"},
	}
}

// PolicyTable is the owned, internally synchronized holder for cache
// policies. Operators may retune a category at runtime without restart; all
// readers observe the update on their next lookup.
type PolicyTable struct {
	mu       sync.RWMutex
	policies map[llm.ActionCategory]Policy
}

// NewPolicyTable validates and installs the initial policy set.
func NewPolicyTable(policies map[llm.ActionCategory]Policy) (*PolicyTable, error) {
	t := &PolicyTable{policies: make(map[llm.ActionCategory]Policy, len(policies))}
	for category, p := range policies {
		if err := t.install(category, p); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// install validates one policy against the invariants: TTL >= 0 and a
// namespace unique per category. Must be called with t.mu held or before
// the table is shared.
func (t *PolicyTable) install(category llm.ActionCategory, p Policy) error {
	if p.TTL < 0 {
		return fmt.Errorf("cache policy for %q: negative ttl", category)
	}
	if p.Namespace == "" {
		return fmt.Errorf("cache policy for %q: empty namespace", category)
	}
	for other, existing := range t.policies {
		if other != category && existing.Namespace == p.Namespace {
			return fmt.Errorf("cache policy for %q: namespace %q already used by %q", category, p.Namespace, other)
		}
	}
	t.policies[category] = p
	return nil
}

// Get returns the policy for a category. Unknown categories report a
// disabled policy.
func (t *PolicyTable) Get(category llm.ActionCategory) (Policy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.policies[category]
	return p, ok
}

// Update replaces one category's policy at runtime.
func (t *PolicyTable) Update(category llm.ActionCategory, p Policy) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.install(category, p)
}

// Categories lists the configured categories.
func (t *PolicyTable) Categories() []llm.ActionCategory {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]llm.ActionCategory, 0, len(t.policies))
	for category := range t.policies {
		out = append(out, category)
	}
	return out
}
