// Package metrics implements the per-run Metrics Collector and the
// cross-run Aggregator, plus OTel instrumentation and a Markdown run
// summary.
package metrics

import (
	"time"

	"github.com/autoloom/loom/internal/stepresult"
)

// RunMetrics is the immutable record a Collector produces on Finalize.
type RunMetrics struct {
	RunID      string
	Flow       string
	StartedAt  time.Time
	DurationMs int64
	Success    bool

	StepCount        int
	FailedSteps      []stepresult.Result
	LlmCalls         int
	PromptTokens     int
	CompletionTokens int
	PatchAttempts    int
	PatchesApplied   int
	HealingHits      int
	HealingMisses    int
	CheckpointWaitMs int64

	FallbackLadderUsage map[string]int
}

// Collector accumulates one run's activity until Finalize produces a
// RunMetrics snapshot and resets the collector's internal state.
type Collector struct {
	runID     string
	flow      string
	startedAt time.Time

	stepCount   int
	failedSteps []stepresult.Result

	llmCalls         int
	promptTokens     int
	completionTokens int

	patchAttempts  int
	patchesApplied int

	healingHits   int
	healingMisses int

	checkpointWaitMs int64

	fallbackUsage map[string]int
}

// NewCollector starts a fresh per-run Collector. startedAt is passed in by
// the caller rather than taken from time.Now() so a run's timestamp is
// reproducible and attributable to a single clock read at run start.
func NewCollector(runID, flow string, startedAt time.Time) *Collector {
	return &Collector{
		runID:         runID,
		flow:          flow,
		startedAt:     startedAt,
		fallbackUsage: map[string]int{},
	}
}

// RecordStep logs a completed step's result.
func (c *Collector) RecordStep(result stepresult.Result) {
	c.stepCount++
	if !result.OK {
		c.failedSteps = append(c.failedSteps, result)
	}
}

// RecordLlmCall logs one LLM call's token usage.
func (c *Collector) RecordLlmCall(promptTokens, completionTokens int) {
	c.llmCalls++
	c.promptTokens += promptTokens
	c.completionTokens += completionTokens
}

// RecordPatch logs an authoring_patch attempt and whether it was applied.
func (c *Collector) RecordPatch(ok bool) {
	c.patchAttempts++
	if ok {
		c.patchesApplied++
	}
}

// RecordHealingMemory logs a Healing Memory lookup outcome.
func (c *Collector) RecordHealingMemory(hit bool) {
	if hit {
		c.healingHits++
	} else {
		c.healingMisses++
	}
}

// RecordCheckpointWait logs the wall-clock time spent waiting on an
// operator decision at a checkpoint.
func (c *Collector) RecordCheckpointWait(ms int64) {
	c.checkpointWaitMs += ms
}

// RecordFallback implements recovery.FallbackRecorder, so a Collector can
// be wired directly into a Pipeline to tally fallbackLadderUsage.
func (c *Collector) RecordFallback(method string) {
	c.fallbackUsage[method]++
}

// Finalize produces this run's RunMetrics and resets the Collector so it
// is ready to be reused for another run sharing the same instance.
func (c *Collector) Finalize(success bool) RunMetrics {
	m := RunMetrics{
		RunID:               c.runID,
		Flow:                c.flow,
		StartedAt:           c.startedAt,
		DurationMs:          time.Since(c.startedAt).Milliseconds(),
		Success:             success,
		StepCount:           c.stepCount,
		FailedSteps:         c.failedSteps,
		LlmCalls:            c.llmCalls,
		PromptTokens:        c.promptTokens,
		CompletionTokens:    c.completionTokens,
		PatchAttempts:       c.patchAttempts,
		PatchesApplied:      c.patchesApplied,
		HealingHits:         c.healingHits,
		HealingMisses:       c.healingMisses,
		CheckpointWaitMs:    c.checkpointWaitMs,
		FallbackLadderUsage: c.fallbackUsage,
	}
	*c = *NewCollector(c.runID, c.flow, time.Now())
	return m
}
