// Package stepresult defines StepResult, the outcome of executing one
// Step, shared by the Step Executor, Recovery Pipeline, Workflow Runner,
// and Metrics Collector so none of them need to import each other just to
// pass this value around.
package stepresult

import "github.com/autoloom/loom/internal/runerr"

// Result is the outcome of attempting (and possibly recovering) one Step.
type Result struct {
	StepID     string
	OK         bool
	ErrorType  runerr.ErrorType
	Message    string
	DurationMs int64
	Data       map[string]any

	// Recovered is set when a not-ok attempt was salvaged by the Recovery
	// Pipeline; Method names the rung of the fallback ladder that
	// succeeded (e.g. "selector_fallback", "healing_memory").
	Recovered bool
	Method    string
}

// Ok constructs a successful Result.
func Ok(stepID string, durationMs int64, data map[string]any) Result {
	return Result{StepID: stepID, OK: true, DurationMs: durationMs, Data: data}
}

// Fail constructs a failed Result.
func Fail(stepID string, errorType runerr.ErrorType, message string, durationMs int64) Result {
	return Result{StepID: stepID, OK: false, ErrorType: errorType, Message: message, DurationMs: durationMs}
}
