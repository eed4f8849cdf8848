package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autoloom/loom/internal/buildinfo"
	"github.com/autoloom/loom/internal/log"
	"github.com/autoloom/loom/internal/telemetry"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM; long-running commands (run)
// thread it through for cooperative cancellation.
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "A Recipe Runtime for executing and healing browser automation workflows",
	Long: `loom executes multi-step browser workflows described by a recipe: a
workflow of steps, cached actions and selectors, page fingerprints, and
ranking policies.

When a step fails, loom walks a fixed recovery ladder (retry, selector
fallback, an observe+refresh LLM call, healing memory, authoring a patch,
and finally a human checkpoint) before giving up on the run.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output (includes source locations)")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recipeCmd)
	rootCmd.AddCommand(healingMemoryCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(patchCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived %s, canceling run...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "Forced exit")
		exitWithCode(ExitGeneral)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitGeneral)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitGeneral)
	}
}

// initLogger configures the global logger from flags and environment
// variables, and fires the one-time telemetry notice.
func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	log.SetDefault(log.New(handler))

	telemetry.ShowNoticeIfNeeded()
}

// determineLogLevel resolves the effective slog level: flags take
// precedence over environment variables, which take precedence over the
// WARN default.
func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}

	if isTruthy(os.Getenv("LOOM_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("LOOM_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("LOOM_QUIET")) {
		return slog.LevelError
	}

	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
