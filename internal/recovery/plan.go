// Package recovery implements the Recovery Pipeline: given a failed
// step's FailureContext, it builds the fixed-order RecoveryPlan for that
// error type and executes it, stopping at the first action that
// recovers the step or at a terminal checkpoint.
package recovery

import "github.com/autoloom/loom/internal/runerr"

// Action is one rung of the fallback ladder.
type Action string

const (
	ActionRetry            Action = "retry"
	ActionSelectorFallback Action = "selector_fallback"
	ActionObserveRefresh   Action = "observe_refresh"
	ActionHealingMemory    Action = "healing_memory"
	ActionAuthoringPatch   Action = "authoring_patch"
	ActionCheckpoint       Action = "checkpoint"
)

// terminalActions never cede control back to the step loop: the pipeline
// stops after one of these regardless of its outcome.
var terminalActions = map[Action]bool{
	ActionCheckpoint: true,
}

// plans is the fixed errorType -> RecoveryPlan router.
var plans = map[runerr.ErrorType][]Action{
	runerr.TargetNotFound: {
		ActionRetry, ActionSelectorFallback, ActionObserveRefresh,
		ActionHealingMemory, ActionAuthoringPatch, ActionCheckpoint,
	},
	runerr.ExpectationFailed: {
		ActionObserveRefresh, ActionHealingMemory, ActionAuthoringPatch, ActionCheckpoint,
	},
	runerr.ExtractionEmpty: {
		ActionRetry, ActionObserveRefresh, ActionCheckpoint,
	},
	runerr.Navigation: {
		ActionRetry, ActionCheckpoint,
	},
	runerr.CaptchaOr2FA: {
		ActionCheckpoint,
	},
	runerr.AuthoringServiceTimeout: {
		ActionHealingMemory, ActionCheckpoint,
	},
	runerr.CanvasDetected: {
		ActionCheckpoint,
	},
}

// PlanFor returns the fixed RecoveryPlan for errorType, defaulting to a
// bare checkpoint for an unrecognized or Unknown errorType.
func PlanFor(errorType runerr.ErrorType) []Action {
	if p, ok := plans[errorType]; ok {
		return p
	}
	return []Action{ActionCheckpoint}
}
