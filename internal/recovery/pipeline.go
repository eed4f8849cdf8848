package recovery

import (
	"context"
	"fmt"

	"github.com/autoloom/loom/internal/browserengine"
	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/healing"
	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/runctx"
)

// noopRecorder discards fallback usage counts; used when a Pipeline is
// built without a metrics collector wired in (e.g. in tests).
type noopRecorder struct{}

func (noopRecorder) RecordFallback(string)                            {}
func (noopRecorder) RecordLlmCall(promptTokens, completionTokens int) {}
func (noopRecorder) RecordPatch(ok bool)                              {}
func (noopRecorder) RecordHealingMemory(hit bool)                     {}

// Pipeline executes a FailureContext's RecoveryPlan against a live engine,
// Healing Memory, Checkpoint Handler, and optional PatchPlanner.
type Pipeline struct {
	Engine       browserengine.BrowserEngine
	Healing      *healing.Memory
	Checkpoint   checkpoint.Handler
	PatchPlanner PatchPlanner
	Metrics      FallbackRecorder
}

// New builds a Pipeline. metrics may be nil, in which case fallback
// attempts are simply not counted.
func New(engine browserengine.BrowserEngine, mem *healing.Memory, ch checkpoint.Handler, planner PatchPlanner, metrics FallbackRecorder) *Pipeline {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Pipeline{Engine: engine, Healing: mem, Checkpoint: ch, PatchPlanner: planner, Metrics: metrics}
}

// Run executes fc's plan in order, stopping at the first action that
// recovers the step or at a terminal checkpoint. An action that errors is
// treated as "did not recover" and the pipeline moves to the next rung.
func (p *Pipeline) Run(ctx context.Context, rc *runctx.Context, fc FailureContext) Outcome {
	plan := PlanFor(fc.ErrorType)

	// A non-terminal rung (authoring_patch) can produce a Patch without
	// recovering the step itself; carry it forward so a later rung's
	// Outcome (e.g. checkpoint) doesn't discard it.
	var pendingPatch *recipe.PatchPayload

	for _, action := range plan {
		p.Metrics.RecordFallback(string(action))

		var outcome Outcome
		switch action {
		case ActionRetry:
			outcome = p.retry(ctx, fc)
		case ActionSelectorFallback:
			outcome = p.selectorFallback(ctx, rc, fc)
		case ActionObserveRefresh:
			outcome = p.observeRefresh(ctx, rc, fc)
		case ActionHealingMemory:
			outcome = p.healingMemory(ctx, fc)
		case ActionAuthoringPatch:
			outcome = p.authoringPatch(ctx, rc, fc)
		case ActionCheckpoint:
			outcome = p.checkpointAction(ctx, rc, fc)
		}

		if outcome.Patch != nil {
			pendingPatch = outcome.Patch
		}

		if outcome.Recovered {
			outcome.Method = string(action)
			outcome.Patch = pendingPatch
			return outcome
		}
		if terminalActions[action] {
			outcome.Method = string(action)
			outcome.Terminal = true
			outcome.Patch = pendingPatch
			return outcome
		}
	}

	return Outcome{Recovered: false, Message: "recovery plan exhausted", Patch: pendingPatch}
}

func (p *Pipeline) retry(ctx context.Context, fc FailureContext) Outcome {
	if fc.FailedAction.Selector == "" {
		return Outcome{}
	}
	ok, err := p.Engine.Act(ctx, fc.FailedAction)
	if err != nil || !ok {
		return Outcome{}
	}
	return Outcome{Recovered: true, Message: "Recovered via retry"}
}

func (p *Pipeline) selectorFallback(ctx context.Context, rc *runctx.Context, fc FailureContext) Outcome {
	fallbackEngine, ok := p.Engine.(browserengine.FallbackCapableEngine)
	if !ok {
		return Outcome{}
	}
	sel, ok := rc.Recipe.Selectors[fc.TargetKey]
	if !ok {
		return Outcome{}
	}
	succeeded, err := fallbackEngine.ActWithFallback(ctx, fc.FailedAction, sel)
	if err != nil || !succeeded {
		return Outcome{}
	}
	return Outcome{Recovered: true, Message: "Recovered via selector fallback"}
}

func (p *Pipeline) observeRefresh(ctx context.Context, rc *runctx.Context, fc FailureContext) Outcome {
	if rc.Guard == nil || !rc.Guard.CanCallLlm() {
		return Outcome{}
	}
	instruction := fc.Instruction
	if instruction == "" {
		instruction = fmt.Sprintf("locate the element for %s", fc.TargetKey)
	}

	candidates, err := p.Engine.Observe(ctx, instruction, "")
	if err != nil || len(candidates) == 0 {
		return Outcome{}
	}
	candidate := candidates[0]

	ok, err := p.Engine.Act(ctx, candidate)
	rc.Guard.RecordLlmCall(len(instruction))
	p.Metrics.RecordLlmCall(len(instruction), len(candidate.Selector))
	if err != nil || !ok {
		return Outcome{}
	}

	if p.Healing != nil {
		_ = p.Healing.Record(fc.TargetKey, candidate, fc.URL, healing.Evidence{
			OriginalSelector: fc.FailedSelector,
			HealedSelector:   candidate.Selector,
			PageTitle:        fc.Title,
			PageURL:          fc.URL,
			Method:           string(ActionObserveRefresh),
		})
	}
	return Outcome{Recovered: true, Message: "Recovered via observe_refresh"}
}

func (p *Pipeline) healingMemory(ctx context.Context, fc FailureContext) Outcome {
	if p.Healing == nil {
		return Outcome{}
	}
	action := p.Healing.FindMatch(fc.TargetKey, fc.URL, 0)
	p.Metrics.RecordHealingMemory(action != nil)
	if action == nil {
		return Outcome{}
	}
	ok, err := p.Engine.Act(ctx, *action)
	if err != nil || !ok {
		return Outcome{}
	}
	return Outcome{Recovered: true, Message: "Recovered via healing memory"}
}

func (p *Pipeline) authoringPatch(ctx context.Context, rc *runctx.Context, fc FailureContext) Outcome {
	if p.PatchPlanner == nil || rc.Guard == nil || !rc.Guard.CanCallAuthoring() {
		return Outcome{}
	}

	req := PatchRequest{
		RequestID:      fc.StepID,
		StepID:         fc.StepID,
		ErrorType:      fc.ErrorType,
		URL:            fc.URL,
		Title:          fc.Title,
		FailedSelector: fc.FailedSelector,
		FailedAction:   fc.FailedAction,
		DomSnippet:     fc.DomSnippet,
	}

	patch, err := p.PatchPlanner.PlanPatch(ctx, req)
	rc.Guard.RecordAuthoringCall()
	// This rung only produces a patch; applying it is the Patch Workflow's
	// job downstream, so applied is always false here.
	p.Metrics.RecordPatch(false)
	if err != nil {
		return Outcome{}
	}
	return Outcome{Recovered: false, Patch: &patch, Message: "authoring_patch produced a patch pending application"}
}

func (p *Pipeline) checkpointAction(ctx context.Context, rc *runctx.Context, fc FailureContext) Outcome {
	var screenshot []byte
	if rc.Guard == nil || rc.Guard.CanTakeScreenshot(true) {
		shot, err := p.Engine.Screenshot(ctx, "")
		if err == nil {
			screenshot = shot
			if rc.Guard != nil {
				rc.Guard.RecordScreenshot()
			}
		}
	}

	message := fmt.Sprintf("step %s failed (%s): approve continuing?", fc.StepID, fc.ErrorType)
	decision, err := p.Checkpoint.RequestApproval(ctx, message, screenshot)
	if err != nil || decision != checkpoint.GO {
		return Outcome{Recovered: false}
	}
	return Outcome{Recovered: true, Message: "Recovered via checkpoint approval"}
}
