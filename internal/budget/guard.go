// Package budget implements the Budget Guard: a monotonic per-run counter
// plus policy object enforcing bounds on LLM calls, authoring-service
// calls, and screenshots, with an ordered downgrade ladder consumers can
// walk before a recovery attempt must escalate to a checkpoint.
package budget

import (
	"sync"

	"github.com/autoloom/loom/internal/llm"
	"golang.org/x/time/rate"
)

// DowngradeAction is one rung of the cost-cutting ladder a Guard offers
// before a guarded call must hard-stop.
type DowngradeAction string

const (
	DowngradeTrimDOM              DowngradeAction = "trim_dom"
	DowngradeDropHistory          DowngradeAction = "drop_history"
	DowngradeNarrowObserveScope   DowngradeAction = "observe_scope_narrow"
	DowngradeRequireCheckpoint    DowngradeAction = "require_human_checkpoint"
)

// downgradeOrder is the fixed ladder a Guard walks, one rung per call to
// NextDowngrade, until exhausted.
var downgradeOrder = []DowngradeAction{
	DowngradeTrimDOM,
	DowngradeDropHistory,
	DowngradeNarrowObserveScope,
	DowngradeRequireCheckpoint,
}

// TokenBudget bounds a single run's spend on LLM/authoring calls,
// screenshots, and prompt size.
type TokenBudget struct {
	MaxLlmCallsPerRun             int
	MaxPromptChars                int
	MaxDomSnippetChars            int
	MaxScreenshotPerFailure       int
	MaxScreenshotPerCheckpoint    int
	MaxAuthoringServiceCallsPerRun int
	AuthoringServiceTimeoutMs     int
}

// UsageCounters tracks what a run has spent against its TokenBudget so far.
type UsageCounters struct {
	LlmCalls       int
	AuthoringCalls int
	PromptChars    int
	Screenshots    int
}

// BreakerStater reports whether an LLM provider's circuit breaker is open.
// internal/llm.Factory satisfies this for the configured primary provider.
type BreakerStater interface {
	PrimaryBreakerOpen() bool
}

// Guard enforces a TokenBudget for a single run. It is not safe for
// concurrent use by more than one run; each run constructs its own Guard.
type Guard struct {
	mu             sync.Mutex
	budget         TokenBudget
	usage          UsageCounters
	downgradeIdx   int
	breaker        BreakerStater
	authoringLimiter *rate.Limiter
}

// New creates a Guard for a run. breaker may be nil if no LLM provider is
// configured (canCallLlm then only consults the budget). authoringLimiter
// paces maxAuthoringServiceCallsPerRun process-wide across concurrently
// running runs that share it; pass nil to only enforce the per-run count.
func New(b TokenBudget, breaker BreakerStater, authoringLimiter *rate.Limiter) *Guard {
	return &Guard{
		budget:           b,
		breaker:          breaker,
		authoringLimiter: authoringLimiter,
	}
}

// CanCallLlm reports whether an observe_refresh-style LLM call is still
// permitted: the per-run call count must be under budget, and if a breaker
// is wired, it must not be open.
func (g *Guard) CanCallLlm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.budget.MaxLlmCallsPerRun > 0 && g.usage.LlmCalls >= g.budget.MaxLlmCallsPerRun {
		return false
	}
	if g.breaker != nil && g.breaker.PrimaryBreakerOpen() {
		return false
	}
	return true
}

// CanCallAuthoring reports whether an authoring_patch call is still
// permitted: under the per-run count, and the shared rate limiter (if any)
// has a token available right now.
func (g *Guard) CanCallAuthoring() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.budget.MaxAuthoringServiceCallsPerRun > 0 && g.usage.AuthoringCalls >= g.budget.MaxAuthoringServiceCallsPerRun {
		return false
	}
	if g.authoringLimiter != nil && !g.authoringLimiter.Allow() {
		return false
	}
	return true
}

// CanTakeScreenshot reports whether a screenshot may be captured, using a
// different cap depending on whether it's for a recovery failure or a
// checkpoint prompt.
func (g *Guard) CanTakeScreenshot(forCheckpoint bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	limit := g.budget.MaxScreenshotPerFailure
	if forCheckpoint {
		limit = g.budget.MaxScreenshotPerCheckpoint
	}
	return limit <= 0 || g.usage.Screenshots < limit
}

// RecordLlmCall charges an LLM call against the budget.
func (g *Guard) RecordLlmCall(promptChars int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage.LlmCalls++
	g.usage.PromptChars += promptChars
}

// RecordAuthoringCall charges an authoring-service call against the budget.
func (g *Guard) RecordAuthoringCall() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage.AuthoringCalls++
}

// RecordScreenshot charges a screenshot capture against the budget.
func (g *Guard) RecordScreenshot() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage.Screenshots++
}

// IsOverBudget reports whether the LLM-call or authoring-call counter has
// reached its limit. Other usage counters are not checked.
func (g *Guard) IsOverBudget() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.budget.MaxLlmCallsPerRun > 0 && g.usage.LlmCalls >= g.budget.MaxLlmCallsPerRun {
		return true
	}
	if g.budget.MaxAuthoringServiceCallsPerRun > 0 && g.usage.AuthoringCalls >= g.budget.MaxAuthoringServiceCallsPerRun {
		return true
	}
	return false
}

// NextDowngrade returns the next cheapening action to apply before a
// retried guarded call, or false once the ladder is exhausted (the next
// failure must escalate to a checkpoint).
func (g *Guard) NextDowngrade() (DowngradeAction, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.downgradeIdx >= len(downgradeOrder) {
		return "", false
	}
	action := downgradeOrder[g.downgradeIdx]
	g.downgradeIdx++
	return action, true
}

// Usage returns a snapshot of the run's current spend.
func (g *Guard) Usage() UsageCounters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

var _ BreakerStater = (*llm.Factory)(nil)
