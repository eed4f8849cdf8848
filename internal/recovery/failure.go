package recovery

import (
	"context"

	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/runerr"
)

// FailureContext describes a step's failure in enough detail for the
// pipeline to build a RecoveryPlan and execute each of its actions.
type FailureContext struct {
	StepID         string
	ErrorType      runerr.ErrorType
	URL            string
	Title          string
	TargetKey      string
	Instruction    string
	FailedSelector string
	FailedAction   recipe.ActionRef
	DomSnippet     string
}

// PatchRequest is what the pipeline sends a PatchPlanner for the
// authoring_patch action.
type PatchRequest struct {
	RequestID        string
	StepID           string
	ErrorType        runerr.ErrorType
	URL              string
	Title            string
	FailedSelector   string
	FailedAction     recipe.ActionRef
	DomSnippet       string
	ScreenshotBase64 string
}

// PatchPlanner is the optional remote-authoring capability consumed by the
// authoring_patch action.
type PatchPlanner interface {
	PlanPatch(ctx context.Context, req PatchRequest) (recipe.PatchPayload, error)
}

// FallbackRecorder is the metrics hook the pipeline calls into as it walks
// a recovery plan: once per attempted action regardless of outcome, plus
// the per-action detail (LLM call, patch attempt, healing lookup) that lets
// a Collector build RunMetrics' fallback, budget, and patch sections.
type FallbackRecorder interface {
	RecordFallback(method string)
	RecordLlmCall(promptTokens, completionTokens int)
	RecordPatch(ok bool)
	RecordHealingMemory(hit bool)
}

// Outcome is the pipeline's verdict after running a FailureContext's plan.
type Outcome struct {
	Recovered bool
	Method    string
	Message   string

	// Patch is set when authoring_patch produced a payload; applying it
	// is the Patch Workflow's job, not the pipeline's.
	Patch *recipe.PatchPayload

	// Terminal reports whether the pipeline stopped at a terminal action
	// (checkpoint) rather than exhausting the plan.
	Terminal bool
}
