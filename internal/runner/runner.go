// Package runner implements the Workflow Runner: preflight, the GO/NOT-GO
// gate, the sequential step loop with onFail routing, and the run summary,
// emitting the full Run Event Stream sequence as it goes.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autoloom/loom/internal/browserengine"
	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/events"
	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/runctx"
	"github.com/autoloom/loom/internal/stepexec"
	"github.com/autoloom/loom/internal/stepresult"
)

// DefaultMaxRetries is the fixed bound on automatic onFail=retry re-runs of
// a single step before the run aborts at it, per spec: the fallback
// ladder inside the Step Executor handles deeper recovery.
const DefaultMaxRetries = 1

// Summary is a run's final report.
type Summary struct {
	OK          bool
	StepResults []stepresult.Result
	DurationMs  int64
	AbortedAt   string
}

// CheckpointRecorder is the metrics hook a Runner calls into after each
// operator decision it waits on directly (the run's GO/NOT-GO gate and an
// onFail=checkpoint escalation). *metrics.Collector implements this.
type CheckpointRecorder interface {
	RecordCheckpointWait(ms int64)
}

// noopCheckpointRecorder discards checkpoint wait timings; used when a
// Runner is built without a metrics collector wired in (e.g. in tests).
type noopCheckpointRecorder struct{}

func (noopCheckpointRecorder) RecordCheckpointWait(int64) {}

// Runner orchestrates one run of a Recipe's Workflow.
type Runner struct {
	Engine     browserengine.BrowserEngine
	Executor   *stepexec.Executor
	Checkpoint checkpoint.Handler
	Events     *events.Stream
	Metrics    CheckpointRecorder
	MaxRetries int
}

// New builds a Runner. events may be nil, in which case no stream is
// emitted (useful for tests that only care about the Summary). metrics may
// be nil, in which case checkpoint waits are simply not timed.
func New(engine browserengine.BrowserEngine, executor *stepexec.Executor, checkpointHandler checkpoint.Handler, stream *events.Stream, metrics CheckpointRecorder) *Runner {
	if metrics == nil {
		metrics = noopCheckpointRecorder{}
	}
	return &Runner{
		Engine:     engine,
		Executor:   executor,
		Checkpoint: checkpointHandler,
		Events:     stream,
		Metrics:    metrics,
		MaxRetries: DefaultMaxRetries,
	}
}

// Run executes rc's Recipe end to end.
func (r *Runner) Run(ctx context.Context, rc *runctx.Context) Summary {
	start := time.Now()
	steps := rc.Recipe.Workflow.Steps
	r.emit(events.RunStart(rc.RunID, len(steps)))

	if reason, ok := r.preflight(ctx, rc.Recipe.Fingerprints); !ok {
		return r.finish(rc, nil, start, false, "preflight", reason)
	}

	message := fmt.Sprintf("about to run workflow %q (%d steps): proceed?", rc.Recipe.Workflow.ID, len(steps))
	waitStart := time.Now()
	decision, err := r.Checkpoint.RequestApproval(ctx, message, nil)
	r.Metrics.RecordCheckpointWait(time.Since(waitStart).Milliseconds())
	if err != nil || decision != checkpoint.GO {
		return r.finish(rc, nil, start, false, "go_not_go", "operator did not approve the run")
	}

	results := make([]stepresult.Result, 0, len(steps))
	for i, step := range steps {
		r.emit(events.StepStart(step.ID, i, string(step.Op)))
		result := r.executeWithRetries(ctx, rc, step)
		r.emit(events.StepEnd(step.ID, i, result.OK, result.DurationMs, result.Message, string(result.ErrorType), result.Data))
		results = append(results, result)

		if result.OK {
			continue
		}

		switch step.OnFail {
		case recipe.OnFailCheckpoint:
			waitStart := time.Now()
			decision, err := r.Checkpoint.RequestApproval(ctx, fmt.Sprintf("step %s failed (%s): continue?", step.ID, result.ErrorType), nil)
			r.Metrics.RecordCheckpointWait(time.Since(waitStart).Milliseconds())
			if err == nil && decision == checkpoint.GO {
				continue
			}
			return r.finish(rc, results, start, false, step.ID, "operator declined to continue past failed step")
		default:
			// abort | retry | fallback (and any unrecognized value): the
			// Step Executor already ran its recovery ladder, so the run
			// ends at this step.
			return r.finish(rc, results, start, false, step.ID, result.Message)
		}
	}

	return r.finish(rc, results, start, true, "", "")
}

// executeWithRetries runs step once, and if it fails and onFail=retry, up
// to MaxRetries more times.
func (r *Runner) executeWithRetries(ctx context.Context, rc *runctx.Context, step recipe.Step) stepresult.Result {
	result := r.Executor.Execute(ctx, rc, step)
	if step.OnFail != recipe.OnFailRetry {
		return result
	}
	for attempt := 0; !result.OK && attempt < r.MaxRetries; attempt++ {
		result = r.Executor.Execute(ctx, rc, step)
	}
	return result
}

// preflight compares each fingerprint with a non-empty UrlContains against
// the current URL. mustText/mustSelectors are advisory only and not
// checked here.
func (r *Runner) preflight(ctx context.Context, fingerprints []recipe.Fingerprint) (string, bool) {
	if len(fingerprints) == 0 {
		return "", true
	}
	url, err := r.Engine.CurrentURL(ctx)
	if err != nil {
		return err.Error(), false
	}
	for _, fp := range fingerprints {
		if fp.URLContains == "" {
			continue
		}
		if !strings.Contains(url, fp.URLContains) {
			return fmt.Sprintf("fingerprint mismatch: url %q does not contain %q", url, fp.URLContains), false
		}
	}
	return "", true
}

func (r *Runner) finish(rc *runctx.Context, results []stepresult.Result, start time.Time, ok bool, abortedAt, reason string) Summary {
	duration := time.Since(start).Milliseconds()
	if ok {
		r.emit(events.RunComplete(true, duration, rc.Vars, "", "run completed successfully"))
	} else if abortedAt != "" {
		r.emit(events.RunComplete(false, duration, rc.Vars, abortedAt, reason))
	} else {
		r.emit(events.RunError(reason))
	}
	return Summary{OK: ok, StepResults: results, DurationMs: duration, AbortedAt: abortedAt}
}

func (r *Runner) emit(ev events.RunEvent) {
	if r.Events != nil {
		r.Events.Emit(ev)
	}
}
