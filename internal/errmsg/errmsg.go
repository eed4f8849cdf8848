// Package errmsg formats run errors into actionable messages for the CLI
// and the Markdown run summary.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/autoloom/loom/internal/runerr"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	StepID string // the step being formatted, for suggestions
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	var expErr *runerr.ExpectationError
	if errors.As(err, &expErr) {
		return formatExpectationError(expErr, ctx)
	}

	var budgetErr *runerr.BudgetExceededError
	if errors.As(err, &budgetErr) {
		return formatBudgetError(budgetErr, ctx)
	}

	var patchErr *runerr.PatchApplyError
	if errors.As(err, &patchErr) {
		return formatPatchApplyError(patchErr, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr, ctx)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg, ctx)
	}

	return errMsg
}

func formatExpectationError(err *runerr.ExpectationError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The page did not reach the expected state after the action\n")
	sb.WriteString("  - The site changed its URL, title, or element layout\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check whether the recovery pipeline's observe_refresh or healing_memory strategy recovered the step\n")
	if ctx != nil && ctx.StepID != "" {
		sb.WriteString(fmt.Sprintf("  - Inspect dom_%s.html and step_%s.png in the run directory\n", ctx.StepID, ctx.StepID))
	}

	return sb.String()
}

func formatBudgetError(err *runerr.BudgetExceededError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The run's TokenBudget limits were set too low for this flow\n")
	sb.WriteString("  - Repeated recovery attempts exhausted the budget before a checkpoint\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Raise the relevant TokenBudget field in config.toml\n")
	sb.WriteString("  - Expect the run to have escalated to require_human_checkpoint\n")

	return sb.String()
}

func formatPatchApplyError(err *runerr.PatchApplyError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The PatchPlanner proposed an op against a key that no longer matches the stored recipe\n")
	sb.WriteString("  - Two patches were proposed concurrently against the same recipe version\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Re-run observe_refresh to regenerate candidates against the current recipe\n")
	sb.WriteString("  - Discard the proposed patch; the stored recipe file is unchanged\n")

	return sb.String()
}

func formatNetworkError(err net.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - The browser engine or PatchPlanner call timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check connectivity to the target site and any configured authoring service\n")
	sb.WriteString("  - Try again; a transient failure here is classified as Navigation or AuthoringServiceTimeout\n")

	return sb.String()
}

func formatGenericNetworkError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue reaching the target site or authoring service\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}
