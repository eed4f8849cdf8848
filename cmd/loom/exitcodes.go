package main

import "os"

// Exit codes distinguish a run's failure mode for scripted callers.
const (
	// ExitSuccess indicates a run_complete with ok=true.
	ExitSuccess = 0

	// ExitGeneral indicates a general error (bad flags, unreadable recipe
	// directory, a command other than run failing).
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments.
	ExitUsage = 2

	// ExitRunFailed indicates a run_complete with ok=false: the run ended
	// cleanly at an aborted step rather than crashing.
	ExitRunFailed = 3

	// ExitRunError indicates a run_error: malformed stdin, a browser
	// launch failure, or the whole-run timeout expiring.
	ExitRunError = 4

	// ExitValidationFailed indicates a recipe failed structural validation.
	ExitValidationFailed = 5
)

func exitWithCode(code int) {
	os.Exit(code)
}
