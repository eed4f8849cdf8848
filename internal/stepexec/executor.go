// Package stepexec implements the Step Executor: it dispatches a single
// recipe.Step by its Op, validates any post-step expectations, classifies
// failures into the runerr taxonomy, and on a not-ok result consults the
// Recovery Pipeline before giving up.
package stepexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autoloom/loom/internal/browserengine"
	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/policy"
	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/recovery"
	"github.com/autoloom/loom/internal/runctx"
	"github.com/autoloom/loom/internal/runerr"
	"github.com/autoloom/loom/internal/stepresult"
)

// StepRecorder is the metrics hook an Executor calls into: once per
// completed Step, and once per wait on an op=checkpoint operator decision.
// *metrics.Collector implements this.
type StepRecorder interface {
	RecordStep(result stepresult.Result)
	RecordCheckpointWait(ms int64)
}

// noopStepRecorder discards step results; used when an Executor is built
// without a metrics collector wired in (e.g. in tests).
type noopStepRecorder struct{}

func (noopStepRecorder) RecordStep(stepresult.Result)  {}
func (noopStepRecorder) RecordCheckpointWait(ms int64) {}

// Executor runs a single Step against a BrowserEngine, escalating to a
// Recovery Pipeline on failure.
type Executor struct {
	Engine     browserengine.BrowserEngine
	Recovery   *recovery.Pipeline
	Checkpoint checkpoint.Handler
	Metrics    StepRecorder
}

// New builds an Executor. checkpointHandler is used directly for
// op=checkpoint steps; the Recovery Pipeline carries its own (possibly
// different) Checkpoint Handler for the checkpoint recovery action.
func New(engine browserengine.BrowserEngine, pipeline *recovery.Pipeline, checkpointHandler checkpoint.Handler, metrics StepRecorder) *Executor {
	if metrics == nil {
		metrics = noopStepRecorder{}
	}
	return &Executor{Engine: engine, Recovery: pipeline, Checkpoint: checkpointHandler, Metrics: metrics}
}

// Execute runs step under rc, returning its final StepResult. On a
// not-ok outcome of goto, act_cached or extract the Recovery Pipeline is
// consulted (act_template classifies but does not recover; choose,
// checkpoint, wait and unknown ops skip recovery too); a recovered step comes
// back ok with Message = "Recovered via <method>".
func (e *Executor) Execute(ctx context.Context, rc *runctx.Context, step recipe.Step) stepresult.Result {
	start := time.Now()
	args, _ := Interpolate(step.Args, rc.Vars).(map[string]any)

	result, skipRecovery, attempted := e.dispatch(ctx, rc, step, args)
	result.DurationMs = time.Since(start).Milliseconds()

	if result.OK && len(step.Expect) > 0 {
		if failed := e.checkExpectations(ctx, step.Expect); len(failed) > 0 {
			result = stepresult.Fail(step.ID, runerr.ExpectationFailed,
				fmt.Sprintf("expectations failed: %s", strings.Join(failed, ", ")), result.DurationMs)
		}
	}

	if !result.OK && !skipRecovery && e.Recovery != nil {
		fc := e.failureContext(step, result, attempted)
		outcome := e.Recovery.Run(ctx, rc, fc)
		if outcome.Recovered {
			result = stepresult.Ok(step.ID, result.DurationMs, result.Data)
			result.Recovered = true
			result.Method = outcome.Method
			result.Message = "Recovered via " + outcome.Method
		} else if outcome.Patch != nil {
			if result.Data == nil {
				result.Data = map[string]any{}
			}
			result.Data["patch"] = outcome.Patch
		}
	}

	e.Metrics.RecordStep(result)
	return result
}

// dispatch runs step's op once, returning its immediate result, whether
// recovery should be skipped for this op regardless of outcome, and (for
// the act_* ops) the ActionRef that was attempted, for the Recovery
// Pipeline's retry/selector_fallback actions to re-use.
func (e *Executor) dispatch(ctx context.Context, rc *runctx.Context, step recipe.Step, args map[string]any) (stepresult.Result, bool, recipe.ActionRef) {
	switch step.Op {
	case recipe.OpGoto:
		return e.doGoto(ctx, step, args), false, recipe.ActionRef{}
	case recipe.OpActCached:
		result, ref := e.doActCached(ctx, rc, step, args)
		return result, false, ref
	case recipe.OpActTemplate:
		result, ref := e.doActTemplate(ctx, rc, step, args)
		return result, true, ref
	case recipe.OpExtract:
		return e.doExtract(ctx, rc, step, args), false, recipe.ActionRef{}
	case recipe.OpChoose:
		return e.doChoose(rc, step, args), true, recipe.ActionRef{}
	case recipe.OpCheckpoint:
		return e.doCheckpoint(ctx, rc, step, args), true, recipe.ActionRef{}
	case recipe.OpWait:
		return e.doWait(step, args), true, recipe.ActionRef{}
	default:
		return stepresult.Fail(step.ID, runerr.Unknown, fmt.Sprintf("unknown op %q", step.Op), 0), true, recipe.ActionRef{}
	}
}

func (e *Executor) doGoto(ctx context.Context, step recipe.Step, args map[string]any) stepresult.Result {
	url, _ := args["url"].(string)
	if url == "" {
		return stepresult.Fail(step.ID, runerr.Navigation, "missing args.url", 0)
	}
	if err := e.Engine.Goto(ctx, url); err != nil {
		return stepresult.Fail(step.ID, runerr.Navigation, err.Error(), 0)
	}
	return stepresult.Ok(step.ID, 0, nil)
}

func (e *Executor) doActCached(ctx context.Context, rc *runctx.Context, step recipe.Step, args map[string]any) (stepresult.Result, recipe.ActionRef) {
	entry, ok := rc.Recipe.Actions[step.TargetKey]
	if !ok {
		return stepresult.Fail(step.ID, runerr.TargetNotFound, fmt.Sprintf("no cached action for %q", step.TargetKey), 0), recipe.ActionRef{}
	}
	ref := entry.Preferred
	succeeded, err := e.Engine.Act(ctx, ref)
	if err != nil {
		return stepresult.Fail(step.ID, classifyActError(err, ref), err.Error(), 0), ref
	}
	if !succeeded {
		return stepresult.Fail(step.ID, runerr.TargetNotFound, fmt.Sprintf("selector %q not found", ref.Selector), 0), ref
	}
	return stepresult.Ok(step.ID, 0, nil), ref
}

func (e *Executor) doActTemplate(ctx context.Context, rc *runctx.Context, step recipe.Step, args map[string]any) (stepresult.Result, recipe.ActionRef) {
	entry, ok := rc.Recipe.Actions[step.TargetKey]
	if !ok {
		return stepresult.Fail(step.ID, runerr.TargetNotFound, fmt.Sprintf("no cached action for %q", step.TargetKey), 0), recipe.ActionRef{}
	}
	ref := entry.Preferred
	interpolated := make([]string, len(ref.Arguments))
	for i, a := range ref.Arguments {
		interpolated[i] = fmt.Sprint(Interpolate(a, rc.Vars))
	}
	ref.Arguments = interpolated

	succeeded, err := e.Engine.Act(ctx, ref)
	if err != nil {
		return stepresult.Fail(step.ID, classifyActError(err, ref), err.Error(), 0), ref
	}
	if !succeeded {
		return stepresult.Fail(step.ID, runerr.TargetNotFound, fmt.Sprintf("selector %q not found", ref.Selector), 0), ref
	}
	return stepresult.Ok(step.ID, 0, nil), ref
}

func (e *Executor) doExtract(ctx context.Context, rc *runctx.Context, step recipe.Step, args map[string]any) stepresult.Result {
	schema, _ := args["schema"].(map[string]any)
	scope, _ := args["scope"].(string)
	into, _ := args["into"].(string)

	data, err := e.Engine.Extract(ctx, schema, scope)
	if err != nil {
		return stepresult.Fail(step.ID, runerr.ExtractionEmpty, err.Error(), 0)
	}
	if isEmptyExtraction(data) {
		return stepresult.Fail(step.ID, runerr.ExtractionEmpty, "extraction returned no data", 0)
	}
	if into != "" {
		rc.Set(into, data)
	}
	return stepresult.Ok(step.ID, 0, map[string]any{"extracted": data})
}

func (e *Executor) doChoose(rc *runctx.Context, step recipe.Step, args map[string]any) stepresult.Result {
	fromKey, _ := args["from"].(string)
	policyKey, _ := args["policy"].(string)
	into, _ := args["into"].(string)

	rawList, ok := rc.Get(fromKey)
	if !ok {
		return stepresult.Fail(step.ID, "", fmt.Sprintf("vars.%s is not set", fromKey), 0)
	}
	list, ok := rawList.([]any)
	if !ok {
		return stepresult.Fail(step.ID, "", fmt.Sprintf("vars.%s is not a list", fromKey), 0)
	}

	p, ok := rc.Recipe.Policies[policyKey]
	if !ok {
		return stepresult.Fail(step.ID, "", fmt.Sprintf("no policy named %q", policyKey), 0)
	}

	candidates := make([]policy.Candidate, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			candidates = append(candidates, policy.Candidate(m))
		}
	}

	winner := policy.Evaluate(candidates, p)
	if winner == nil {
		return stepresult.Fail(step.ID, "", "no candidate survived the policy", 0)
	}
	if into != "" {
		rc.Set(into, map[string]any(winner))
	}
	return stepresult.Ok(step.ID, 0, map[string]any{"winner": winner})
}

func (e *Executor) doCheckpoint(ctx context.Context, rc *runctx.Context, step recipe.Step, args map[string]any) stepresult.Result {
	message, _ := args["message"].(string)
	if message == "" {
		message = fmt.Sprintf("step %s requests operator approval", step.ID)
	}

	var screenshot []byte
	if rc.Guard == nil || rc.Guard.CanTakeScreenshot(true) {
		if shot, err := e.Engine.Screenshot(ctx, ""); err == nil {
			screenshot = shot
			if rc.Guard != nil {
				rc.Guard.RecordScreenshot()
			}
		}
	}

	waitStart := time.Now()
	decision, err := e.Checkpoint.RequestApproval(ctx, message, screenshot)
	e.Metrics.RecordCheckpointWait(time.Since(waitStart).Milliseconds())
	if err != nil {
		return stepresult.Fail(step.ID, runerr.Unknown, err.Error(), 0)
	}
	if decision != checkpoint.GO {
		return stepresult.Fail(step.ID, "", "operator declined at checkpoint", 0)
	}
	return stepresult.Ok(step.ID, 0, nil)
}

func (e *Executor) doWait(step recipe.Step, args map[string]any) stepresult.Result {
	ms := toMillis(args["ms"])
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
	return stepresult.Ok(step.ID, 0, nil)
}

func (e *Executor) checkExpectations(ctx context.Context, expectations []recipe.Expectation) []string {
	var failed []string
	for _, exp := range expectations {
		if !e.holds(ctx, exp) {
			failed = append(failed, string(exp.Kind))
		}
	}
	return failed
}

func (e *Executor) holds(ctx context.Context, exp recipe.Expectation) bool {
	switch exp.Kind {
	case recipe.ExpectURLContains:
		url, err := e.Engine.CurrentURL(ctx)
		return err == nil && strings.Contains(url, exp.Value)
	case recipe.ExpectTitleContains:
		title, err := e.Engine.CurrentTitle(ctx)
		return err == nil && strings.Contains(title, exp.Value)
	case recipe.ExpectSelectorVisible:
		shot, err := e.Engine.Screenshot(ctx, exp.Value)
		return err == nil && len(shot) > 0
	case recipe.ExpectTextContains:
		data, err := e.Engine.Extract(ctx, nil, "")
		return err == nil && strings.Contains(fmt.Sprint(data), exp.Value)
	default:
		return true
	}
}

func (e *Executor) failureContext(step recipe.Step, result stepresult.Result, attempted recipe.ActionRef) recovery.FailureContext {
	return recovery.FailureContext{
		StepID:         step.ID,
		ErrorType:      result.ErrorType,
		TargetKey:      step.TargetKey,
		FailedSelector: attempted.Selector,
		FailedAction:   attempted,
	}
}

func classifyActError(err error, ref recipe.ActionRef) runerr.ErrorType {
	if t := runerr.Classify(err); t != runerr.Unknown {
		return t
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "captcha") || strings.Contains(msg, "2fa"):
		return runerr.CaptchaOr2FA
	case strings.Contains(msg, "canvas"):
		return runerr.CanvasDetected
	case ref.Selector != "":
		return runerr.TargetNotFound
	default:
		return runerr.Unknown
	}
}

func isEmptyExtraction(data any) bool {
	switch v := data.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func toMillis(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
