package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/autoloom/loom/internal/authoring"
	"github.com/autoloom/loom/internal/browserengine"
	"github.com/autoloom/loom/internal/budget"
	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/config"
	"github.com/autoloom/loom/internal/events"
	"github.com/autoloom/loom/internal/healing"
	"github.com/autoloom/loom/internal/llm"
	"github.com/autoloom/loom/internal/metrics"
	"github.com/autoloom/loom/internal/progress"
	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/recovery"
	"github.com/autoloom/loom/internal/runctx"
	"github.com/autoloom/loom/internal/runner"
	"github.com/autoloom/loom/internal/stepexec"
	"github.com/autoloom/loom/internal/telemetry"
	"github.com/autoloom/loom/internal/userconfig"
)

var prettyFlag bool

func init() {
	runCmd.Flags().BoolVar(&prettyFlag, "pretty", false, "show a spinner on stderr while a run is paused at a checkpoint")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a recipe read as JSON from standard input",
	Long: `run reads {recipe, options?:{headless?, timeout?}} as a single JSON
document from standard input, executes the recipe's workflow, and writes
one RunEvent JSON object per line to standard output.

Exit code 0 iff a run_complete event with ok=true was emitted; non-zero on
any run_error or on timeout expiry.`,
	RunE: runRecipe,
}

// runInput is the CLI's stdin wire shape.
type runInput struct {
	Recipe  recipe.Recipe `json:"recipe"`
	Options runOptions    `json:"options"`

	// TestEngine scripts the Fake browser engine for functional testing.
	// It has no counterpart in a production invocation.
	TestEngine *testEngineHint `json:"_testEngine,omitempty"`
}

type runOptions struct {
	Headless *bool `json:"headless,omitempty"`
	// TimeoutMs is the whole-run hard deadline in milliseconds.
	TimeoutMs int64 `json:"timeout,omitempty"`
}

type testEngineHint struct {
	FailSelector    string `json:"failSelector,omitempty"`
	SucceedSelector string `json:"succeedSelector,omitempty"`
}

func runRecipe(cmd *cobra.Command, args []string) error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return fmt.Errorf("resolving loom home: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("preparing loom home: %w", err)
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	var in runInput
	if err := json.Unmarshal(raw, &in); err != nil {
		printEvent(cmd, events.RunError(fmt.Sprintf("malformed stdin: %v", err)))
		exitWithCode(ExitRunError)
		return nil
	}

	if err := recipe.Validate(in.Recipe); err != nil {
		printEvent(cmd, events.RunError(fmt.Sprintf("invalid recipe: %v", err)))
		exitWithCode(ExitRunError)
		return nil
	}

	runID := uuid.NewString()
	runDir := cfg.RunDir(runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("preparing run directory: %w", err)
	}

	ctx := globalCtx
	var cancel context.CancelFunc
	if in.Options.TimeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(in.Options.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	engine := buildEngine(in)
	healingMem, err := healing.New(cfg.HealingMemoryFile)
	if err != nil {
		return fmt.Errorf("opening healing memory: %w", err)
	}

	userCfg, err := userconfig.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	factory := llmFactory(ctx, userCfg)
	var breaker budget.BreakerStater
	if factory != nil {
		breaker = factory
	}
	guard := budget.New(tokenBudgetFrom(userCfg), breaker, rate.NewLimiter(rate.Every(time.Second), 1))

	var checkpointHandler checkpoint.Handler = checkpoint.NewCLI(os.Stdin, os.Stderr)
	if prettyFlag {
		checkpointHandler = &spinningCheckpoint{inner: checkpointHandler}
	}
	var planner recovery.PatchPlanner
	if factory != nil {
		planner = authoring.New(factory)
	}
	collector := metrics.NewCollector(runID, in.Recipe.Flow, time.Now())
	pipeline := recovery.New(engine, healingMem, checkpointHandler, planner, collector)
	executor := stepexec.New(engine, pipeline, checkpointHandler, collector)

	stream := events.NewStream()
	sub := stream.Subscribe()

	logPath := filepath.Join(runDir, "logs.jsonl")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating run log: %w", err)
	}
	defer logFile.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logWriter := bufio.NewWriter(logFile)
		defer logWriter.Flush()
		for ev := range sub {
			printEvent(cmd, ev)
			line, _ := json.Marshal(ev)
			logWriter.Write(line)
			logWriter.WriteString("\n")
		}
	}()

	w := runner.New(engine, executor, checkpointHandler, stream, collector)
	rc := runctx.New(runID, in.Recipe, guard)
	summary := w.Run(ctx, rc)

	// finish always emits a terminal event, closing sub and the drain
	// goroutine behind it.
	<-done

	runMetrics := collector.Finalize(summary.OK)
	writeSummary(runDir, runMetrics)
	writeTraceMeta(runDir, in.Recipe, runID, runMetrics)
	sendTelemetry(in.Recipe, summary, runMetrics)

	if summary.OK {
		exitWithCode(ExitSuccess)
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		exitWithCode(ExitRunError)
		return nil
	}
	exitWithCode(ExitRunFailed)
	return nil
}

// spinningCheckpoint wraps a Handler with a terminal spinner for the
// duration of a checkpoint wait, so a --pretty run at an interactive
// terminal shows visible activity while paused on a GO/NOT-GO decision
// instead of a silent hang.
type spinningCheckpoint struct {
	inner checkpoint.Handler
}

func (s *spinningCheckpoint) RequestApproval(ctx context.Context, message string, screenshot []byte) (checkpoint.Decision, error) {
	spin := progress.NewSpinner(os.Stderr)
	spin.Start("waiting for checkpoint decision: " + message)
	defer spin.Stop()
	return s.inner.RequestApproval(ctx, message, screenshot)
}

// buildEngine constructs the Fake BrowserEngine every run drives: loom
// defines no real browser binding of its own, treating the Browser Engine
// capability as an external collaborator supplied by the embedder. A
// non-empty default screenshot lets selector_visible expectations pass
// against a page the Fake never actually rendered.
func buildEngine(in runInput) *browserengine.Fake {
	fake := browserengine.NewFake()
	fake.ScreenshotBytes = []byte("loom-fake-screenshot")
	if in.TestEngine != nil && in.TestEngine.FailSelector != "" {
		fake.FailSelectors[in.TestEngine.FailSelector] = true
	}
	return fake
}

// llmFactory constructs the Factory shared by the Budget Guard's breaker
// check and the authoring Patch Planner, so both consult the same circuit
// state for the configured provider. Returns nil when LLM-backed recovery
// is disabled or no provider is configured from the environment, in which
// case observe_refresh's budget check passes unconditionally and
// authoring_patch is skipped for lack of a planner.
func llmFactory(ctx context.Context, cfg *userconfig.Config) *llm.Factory {
	factory, err := llm.NewFactory(ctx, llm.WithConfig(cfg))
	if err != nil {
		return nil
	}
	return factory
}

// tokenBudgetFrom derives a run's TokenBudget from the persisted user
// config, falling back to the package defaults for fields config.toml
// does not override.
func tokenBudgetFrom(cfg *userconfig.Config) budget.TokenBudget {
	maxLlm := userconfig.DefaultMaxLlmCallsPerRun
	if cfg.LLM.MaxLlmCallsPerRun != nil {
		maxLlm = *cfg.LLM.MaxLlmCallsPerRun
	}
	maxAuthoring := userconfig.DefaultMaxAuthoringCallsPerRun
	if cfg.LLM.MaxAuthoringCallsPerRun != nil {
		maxAuthoring = *cfg.LLM.MaxAuthoringCallsPerRun
	}
	return budget.TokenBudget{
		MaxLlmCallsPerRun:              maxLlm,
		MaxPromptChars:                 8000,
		MaxDomSnippetChars:             4000,
		MaxScreenshotPerFailure:        1,
		MaxScreenshotPerCheckpoint:     1,
		MaxAuthoringServiceCallsPerRun: maxAuthoring,
		AuthoringServiceTimeoutMs:      int(config.GetAuthoringTimeout().Milliseconds()),
	}
}

func printEvent(cmd *cobra.Command, ev events.RunEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(line))
}

func writeSummary(runDir string, m metrics.RunMetrics) {
	_ = os.WriteFile(filepath.Join(runDir, "summary.md"), []byte(metrics.Summarize(m)), 0o644)
}

type traceMeta struct {
	Flow           string `json:"flow"`
	Version        string `json:"version"`
	RunID          string `json:"runId"`
	LlmCalls       int    `json:"llmCalls"`
	PatchesApplied int    `json:"patchesApplied"`
}

func writeTraceMeta(runDir string, r recipe.Recipe, runID string, m metrics.RunMetrics) {
	meta := traceMeta{
		Flow:           r.Flow,
		Version:        r.Version,
		RunID:          runID,
		LlmCalls:       m.LlmCalls,
		PatchesApplied: m.PatchesApplied,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(runDir, "trace-meta.json"), data, 0o644)
}

// sendTelemetry reports the run's aggregate shape only: no recipe
// content, URLs, or selectors ever leave the process.
func sendTelemetry(r recipe.Recipe, summary runner.Summary, m metrics.RunMetrics) {
	client := telemetry.NewClient()
	fallback := highestFallbackLevel(m.FallbackLadderUsage)
	if summary.OK {
		client.Send(telemetry.NewRunCompleteEvent(r.Domain, r.Version, len(r.Workflow.Steps), fallback, m.LlmCalls, m.PatchAttempts, m.PatchesApplied, summary.DurationMs))
		return
	}
	client.Send(telemetry.NewRunErrorEvent(r.Domain, r.Version, len(r.Workflow.Steps), fallback, m.LlmCalls, m.PatchAttempts, summary.DurationMs))
}

// highestFallbackLevel picks the deepest rung of the fallback ladder used
// this run, per the fixed ladder order, for a single-value telemetry field.
func highestFallbackLevel(usage map[string]int) string {
	ladder := []string{"retry", "selector_fallback", "observe_refresh", "healing_memory", "authoring_patch", "checkpoint"}
	level := ""
	for _, rung := range ladder {
		if usage[rung] > 0 {
			level = rung
		}
	}
	return level
}
