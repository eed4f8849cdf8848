// Package runerr defines the structured error types and the errorType
// taxonomy a run's Step Executor classifies failures into.
package runerr

import "fmt"

// ErrorType is the taxonomy StepResult.errorType is drawn from. Recovery
// Pipeline routing is keyed on this value.
type ErrorType string

const (
	TargetNotFound          ErrorType = "TargetNotFound"
	ExpectationFailed       ErrorType = "ExpectationFailed"
	ExtractionEmpty         ErrorType = "ExtractionEmpty"
	CaptchaOr2FA            ErrorType = "CaptchaOr2FA"
	CanvasDetected          ErrorType = "CanvasDetected"
	AuthoringServiceTimeout ErrorType = "AuthoringServiceTimeout"
	Navigation              ErrorType = "Navigation"
	Unknown                 ErrorType = "Unknown"
)

// ExpectationError reports which post-step expectations failed to hold.
type ExpectationError struct {
	StepID  string
	Failed  []string // expectation kinds that did not hold
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("step %s: expectations failed: %v", e.StepID, e.Failed)
}

// BudgetExceededError reports that a BudgetGuard hard-stopped an action
// because a per-run limit was exhausted.
type BudgetExceededError struct {
	Guard string // "llm", "authoring", "screenshot"
	Limit int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget exceeded (limit %d)", e.Guard, e.Limit)
}

// PatchApplyError reports that a PatchPayload's ops could not be applied
// cleanly to a Recipe (e.g. actions.add targeting an existing key).
type PatchApplyError struct {
	Op     string
	Key    string
	Reason string
}

func (e *PatchApplyError) Error() string {
	return fmt.Sprintf("patch op %s on %q failed: %s", e.Op, e.Key, e.Reason)
}

// Classify maps a raw error into the errorType taxonomy by its structured
// type alone: ExpectationError and BudgetExceededError have a mapping, any
// other error is Unknown, and nil yields an empty ErrorType. Callers that
// have more specific context (e.g. a checkpoint prompt, a canvas probe)
// should set errorType directly rather than going through Classify.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch err.(type) {
	case *ExpectationError:
		return ExpectationFailed
	case *BudgetExceededError:
		return AuthoringServiceTimeout
	}
	return Unknown
}
