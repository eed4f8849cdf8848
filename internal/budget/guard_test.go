package budget

import (
	"testing"

	"golang.org/x/time/rate"
)

type fakeBreaker struct {
	open bool
}

func (f *fakeBreaker) PrimaryBreakerOpen() bool { return f.open }

func TestCanCallLlm_UnderBudget(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 2}, nil, nil)
	if !g.CanCallLlm() {
		t.Fatal("expected CanCallLlm true under budget")
	}
}

func TestCanCallLlm_HardStopAtLimit(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 1}, nil, nil)
	g.RecordLlmCall(100)
	if g.CanCallLlm() {
		t.Fatal("expected CanCallLlm false once MaxLlmCallsPerRun reached")
	}
}

func TestCanCallLlm_ZeroMeansUnbounded(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 0}, nil, nil)
	for i := 0; i < 50; i++ {
		g.RecordLlmCall(10)
	}
	if !g.CanCallLlm() {
		t.Fatal("expected CanCallLlm true when MaxLlmCallsPerRun is 0 (unbounded)")
	}
}

func TestCanCallLlm_BreakerOpen(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 10}, &fakeBreaker{open: true}, nil)
	if g.CanCallLlm() {
		t.Fatal("expected CanCallLlm false when breaker is open")
	}
}

func TestCanCallLlm_BreakerClosed(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 10}, &fakeBreaker{open: false}, nil)
	if !g.CanCallLlm() {
		t.Fatal("expected CanCallLlm true when breaker is closed")
	}
}

func TestCanCallAuthoring_HardStopAtLimit(t *testing.T) {
	g := New(TokenBudget{MaxAuthoringServiceCallsPerRun: 1}, nil, nil)
	g.RecordAuthoringCall()
	if g.CanCallAuthoring() {
		t.Fatal("expected CanCallAuthoring false once MaxAuthoringServiceCallsPerRun reached")
	}
}

func TestCanCallAuthoring_RateLimited(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0), 0)
	g := New(TokenBudget{MaxAuthoringServiceCallsPerRun: 10}, nil, limiter)
	if g.CanCallAuthoring() {
		t.Fatal("expected CanCallAuthoring false when shared limiter has no tokens")
	}
}

func TestCanCallAuthoring_RateAllows(t *testing.T) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	g := New(TokenBudget{MaxAuthoringServiceCallsPerRun: 10}, nil, limiter)
	if !g.CanCallAuthoring() {
		t.Fatal("expected CanCallAuthoring true when shared limiter has infinite rate")
	}
}

func TestCanTakeScreenshot_FailureLimit(t *testing.T) {
	g := New(TokenBudget{MaxScreenshotPerFailure: 1, MaxScreenshotPerCheckpoint: 5}, nil, nil)
	if !g.CanTakeScreenshot(false) {
		t.Fatal("expected first failure screenshot to be allowed")
	}
	g.RecordScreenshot()
	if g.CanTakeScreenshot(false) {
		t.Fatal("expected failure screenshot to be denied once limit reached")
	}
}

func TestCanTakeScreenshot_CheckpointLimitIndependent(t *testing.T) {
	g := New(TokenBudget{MaxScreenshotPerFailure: 1, MaxScreenshotPerCheckpoint: 5}, nil, nil)
	g.RecordScreenshot()
	if !g.CanTakeScreenshot(true) {
		t.Fatal("expected checkpoint screenshot limit to be independent of failure limit")
	}
}

func TestCanTakeScreenshot_ZeroMeansUnbounded(t *testing.T) {
	g := New(TokenBudget{MaxScreenshotPerFailure: 0}, nil, nil)
	for i := 0; i < 20; i++ {
		g.RecordScreenshot()
	}
	if !g.CanTakeScreenshot(false) {
		t.Fatal("expected unlimited screenshots when MaxScreenshotPerFailure is 0")
	}
}

func TestRecordLlmCall_AccumulatesPromptChars(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 5}, nil, nil)
	g.RecordLlmCall(100)
	g.RecordLlmCall(250)
	usage := g.Usage()
	if usage.LlmCalls != 2 {
		t.Fatalf("expected LlmCalls=2, got %d", usage.LlmCalls)
	}
	if usage.PromptChars != 350 {
		t.Fatalf("expected PromptChars=350, got %d", usage.PromptChars)
	}
}

func TestIsOverBudget(t *testing.T) {
	g := New(TokenBudget{MaxLlmCallsPerRun: 1}, nil, nil)
	if g.IsOverBudget() {
		t.Fatal("expected not over budget before any calls")
	}
	g.RecordLlmCall(10)
	if !g.IsOverBudget() {
		t.Fatal("expected over budget once LlmCalls reaches MaxLlmCallsPerRun")
	}
}

func TestNextDowngrade_ExhaustsInOrder(t *testing.T) {
	g := New(TokenBudget{}, nil, nil)
	want := []DowngradeAction{
		DowngradeTrimDOM,
		DowngradeDropHistory,
		DowngradeNarrowObserveScope,
		DowngradeRequireCheckpoint,
	}
	for i, expected := range want {
		action, ok := g.NextDowngrade()
		if !ok {
			t.Fatalf("rung %d: expected ok=true, action=%s", i, expected)
		}
		if action != expected {
			t.Fatalf("rung %d: expected %s, got %s", i, expected, action)
		}
	}
	if _, ok := g.NextDowngrade(); ok {
		t.Fatal("expected ladder to be exhausted after 4 rungs")
	}
}
