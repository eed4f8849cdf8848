// Package telemetry provides anonymous usage telemetry for loom.
package telemetry

import (
	"runtime"

	"github.com/autoloom/loom/internal/buildinfo"
)

// Event represents a telemetry event sent to the backend. Fields describe a
// single run's outcome in aggregate; no recipe content, URLs, selectors, or
// step arguments are ever included.
type Event struct {
	Action          string `json:"action"`           // "run_complete" or "run_error"
	Domain          string `json:"domain"`            // recipe domain (e.g., a hashed label, never a literal URL)
	RecipeVersion   string `json:"recipe_version"`    // the vNNN version a run started with
	StepCount       int    `json:"step_count"`        // number of steps in the workflow
	FallbackLevel   string `json:"fallback_level"`    // highest recovery ladder level reached, or "" if none
	LlmCallCount    int    `json:"llm_call_count"`     // observe_refresh calls made this run
	AuthoringCalls  int    `json:"authoring_calls"`    // authoring_patch calls made this run
	PatchApplied    bool   `json:"patch_applied"`      // whether a patch was accepted and persisted
	DurationMs      int64  `json:"duration_ms"`        // wall-clock run duration
	OS              string `json:"os"`                 // Operating system ("linux", "darwin")
	Arch            string `json:"arch"`                // CPU architecture ("amd64", "arm64")
	LoomVersion     string `json:"loom_version"`        // Version of the loom CLI
	SchemaVersion   string `json:"schema_version"`      // Event schema version
}

const schemaVersion = "1"

// newBaseEvent creates an event with common fields pre-filled.
func newBaseEvent() Event {
	return Event{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		LoomVersion:   buildinfo.Version(),
		SchemaVersion: schemaVersion,
	}
}

// NewRunCompleteEvent creates a telemetry event for a successfully completed run.
func NewRunCompleteEvent(domain, recipeVersion string, stepCount int, fallbackLevel string, llmCalls, authoringCalls int, patchApplied bool, durationMs int64) Event {
	e := newBaseEvent()
	e.Action = "run_complete"
	e.Domain = domain
	e.RecipeVersion = recipeVersion
	e.StepCount = stepCount
	e.FallbackLevel = fallbackLevel
	e.LlmCallCount = llmCalls
	e.AuthoringCalls = authoringCalls
	e.PatchApplied = patchApplied
	e.DurationMs = durationMs
	return e
}

// NewRunErrorEvent creates a telemetry event for a run that ended in a
// run-level error (checkpoint exhausted, budget hard-stop, unrecoverable
// error).
func NewRunErrorEvent(domain, recipeVersion string, stepCount int, fallbackLevel string, llmCalls, authoringCalls int, durationMs int64) Event {
	e := newBaseEvent()
	e.Action = "run_error"
	e.Domain = domain
	e.RecipeVersion = recipeVersion
	e.StepCount = stepCount
	e.FallbackLevel = fallbackLevel
	e.LlmCallCount = llmCalls
	e.AuthoringCalls = authoringCalls
	e.DurationMs = durationMs
	return e
}
