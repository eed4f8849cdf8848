package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Summarize renders a RunMetrics as the Markdown run summary written to
// summary.md: one bullet per failed step naming its errorType and message.
func Summarize(m RunMetrics) string {
	var b strings.Builder

	status := "succeeded"
	if !m.Success {
		status = "failed"
	}
	fmt.Fprintf(&b, "# Run %s\n\n", m.RunID)
	fmt.Fprintf(&b, "- Flow: `%s`\n", m.Flow)
	fmt.Fprintf(&b, "- Started: %s\n", humanize.Time(m.StartedAt))
	fmt.Fprintf(&b, "- Status: %s\n", status)
	fmt.Fprintf(&b, "- Duration: %s\n", time.Duration(m.DurationMs*int64(time.Millisecond)))
	fmt.Fprintf(&b, "- Steps: %s\n", humanize.Comma(int64(m.StepCount)))
	fmt.Fprintf(&b, "- LLM calls: %s\n", humanize.Comma(int64(m.LlmCalls)))
	if m.PatchAttempts > 0 {
		fmt.Fprintf(&b, "- Patches: %d attempted, %d applied\n", m.PatchAttempts, m.PatchesApplied)
	}
	if m.HealingHits+m.HealingMisses > 0 {
		fmt.Fprintf(&b, "- Healing memory: %d hits, %d misses\n", m.HealingHits, m.HealingMisses)
	}

	if len(m.FailedSteps) > 0 {
		fmt.Fprintf(&b, "\n## Failed steps\n\n")
		for _, fs := range m.FailedSteps {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", fs.StepID, fs.ErrorType, fs.Message)
		}
	}

	return b.String()
}
