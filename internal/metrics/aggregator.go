package metrics

import "sort"

// SLO compliance targets, per spec: llmCallsPerRun should stay low enough
// that most steps resolve without an LLM call; second and later runs of a
// flow should mostly succeed once a flow has been seeded; a patch, once
// authored, should usually recover the run it was requested for.
const (
	TargetLlmCallsPerRun      = 0.2
	TargetSecondRunSuccessRate = 0.95
	TargetPostPatchRecoveryRate = 0.80
)

// FlowReport summarizes one flow's runs within an aggregation.
type FlowReport struct {
	RunCount      int
	SuccessRate   float64
	AvgDurationMs float64
}

// SLOReport compares observed rates against their fixed targets.
type SLOReport struct {
	LlmCallsPerRun        float64
	LlmCallsPerRunOK      bool
	SecondRunSuccessRate  float64
	SecondRunSuccessRateOK bool
	PostPatchRecoveryRate  float64
	PostPatchRecoveryRateOK bool
}

// Report is the Aggregator's full snapshot over a set of RunMetrics.
type Report struct {
	RunCount                   int
	SuccessRate                float64
	AvgDurationMs              float64
	AvgLlmCallsPerRun          float64
	AvgTokensPerRun            float64
	PatchRate                  float64
	PostPatchRecoveryRate      float64
	HealingMemoryHitRate       float64
	AvgCheckpointWaitMs        float64
	FallbackLadderDistribution map[string]int
	ByFlow                     map[string]FlowReport
	SLO                        SLOReport
}

// Aggregator accumulates RunMetrics from completed runs and computes a
// Report on demand. Once a RunMetrics is added it is treated as
// immutable, read-only data (per the run-local/then-aggregated resource
// model).
type Aggregator struct {
	runs []RunMetrics
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add records one run's finalized metrics.
func (a *Aggregator) Add(m RunMetrics) {
	a.runs = append(a.runs, m)
}

// Snapshot computes a Report over every run added so far.
func (a *Aggregator) Snapshot() Report {
	n := len(a.runs)
	if n == 0 {
		return Report{
			FallbackLadderDistribution: map[string]int{},
			ByFlow:                     map[string]FlowReport{},
			SLO:                        SLOReport{SecondRunSuccessRate: 1.0, SecondRunSuccessRateOK: true},
		}
	}

	var successes, totalDuration, totalLlmCalls, totalTokens, totalCheckpointWaitMs int64
	var patchedRuns, patchedSuccesses int
	var healingHits, healingMisses int64
	fallback := map[string]int{}
	byFlowRuns := map[string][]RunMetrics{}

	for _, m := range a.runs {
		if m.Success {
			successes++
		}
		totalDuration += m.DurationMs
		totalLlmCalls += int64(m.LlmCalls)
		totalTokens += int64(m.PromptTokens + m.CompletionTokens)
		totalCheckpointWaitMs += m.CheckpointWaitMs
		healingHits += int64(m.HealingHits)
		healingMisses += int64(m.HealingMisses)
		for method, count := range m.FallbackLadderUsage {
			fallback[method] += count
		}
		if m.PatchAttempts > 0 {
			patchedRuns++
			if m.Success {
				patchedSuccesses++
			}
		}
		byFlowRuns[m.Flow] = append(byFlowRuns[m.Flow], m)
	}

	report := Report{
		RunCount:                   n,
		SuccessRate:                float64(successes) / float64(n),
		AvgDurationMs:              float64(totalDuration) / float64(n),
		AvgLlmCallsPerRun:          float64(totalLlmCalls) / float64(n),
		AvgTokensPerRun:            float64(totalTokens) / float64(n),
		PatchRate:                  float64(patchedRuns) / float64(n),
		AvgCheckpointWaitMs:        float64(totalCheckpointWaitMs) / float64(n),
		FallbackLadderDistribution: fallback,
		ByFlow:                     byFlowReports(byFlowRuns),
	}
	if patchedRuns > 0 {
		report.PostPatchRecoveryRate = float64(patchedSuccesses) / float64(patchedRuns)
	}
	if healingHits+healingMisses > 0 {
		report.HealingMemoryHitRate = float64(healingHits) / float64(healingHits+healingMisses)
	}

	secondRunRate := secondRunSuccessRate(a.runs)
	report.SLO = SLOReport{
		LlmCallsPerRun:          report.AvgLlmCallsPerRun,
		LlmCallsPerRunOK:        report.AvgLlmCallsPerRun <= TargetLlmCallsPerRun,
		SecondRunSuccessRate:    secondRunRate,
		SecondRunSuccessRateOK:  secondRunRate >= TargetSecondRunSuccessRate,
		PostPatchRecoveryRate:   report.PostPatchRecoveryRate,
		PostPatchRecoveryRateOK: patchedRuns == 0 || report.PostPatchRecoveryRate >= TargetPostPatchRecoveryRate,
	}
	return report
}

func byFlowReports(byFlow map[string][]RunMetrics) map[string]FlowReport {
	out := make(map[string]FlowReport, len(byFlow))
	for flow, runs := range byFlow {
		var successes, totalDuration int64
		for _, m := range runs {
			if m.Success {
				successes++
			}
			totalDuration += m.DurationMs
		}
		out[flow] = FlowReport{
			RunCount:      len(runs),
			SuccessRate:   float64(successes) / float64(len(runs)),
			AvgDurationMs: float64(totalDuration) / float64(len(runs)),
		}
	}
	return out
}

// secondRunSuccessRate sorts runs by StartedAt, excludes the first
// chronological run of each flow as that flow's seed, and averages
// Success over the remainder. Returns 1.0 when no flow has a second run
// yet.
func secondRunSuccessRate(runs []RunMetrics) float64 {
	sorted := make([]RunMetrics, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartedAt.Before(sorted[j].StartedAt) })

	seeded := map[string]bool{}
	var successes, total int
	for _, m := range sorted {
		if !seeded[m.Flow] {
			seeded[m.Flow] = true
			continue
		}
		total++
		if m.Success {
			successes++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(successes) / float64(total)
}
