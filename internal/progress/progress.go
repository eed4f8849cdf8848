// Package progress shows a terminal spinner while a run is paused waiting
// on a human decision; when stdout isn't a terminal the spinner prints its
// message once instead of animating.
package progress

import (
	"os"

	"golang.org/x/term"
)

// IsTerminalFunc is the function used to check if a file descriptor is a terminal.
// It can be overridden for testing.
var IsTerminalFunc = term.IsTerminal

// ShouldShowProgress returns true if progress should be displayed.
// Progress is shown when stdout is a terminal.
func ShouldShowProgress() bool {
	return IsTerminalFunc(int(os.Stdout.Fd()))
}
