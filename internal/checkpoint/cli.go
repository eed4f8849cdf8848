package checkpoint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// CLI is the interactive Handler: it prints message to out and blocks on a
// y/n answer read from stdin. If stdin is not backed by a terminal (e.g.
// piped, as the run-recipe CLI surface always has it since the recipe
// itself arrives over stdin), RequestApproval returns GO unconditionally,
// since there is no operator to prompt.
type CLI struct {
	stdin  *os.File
	reader *bufio.Reader
	out    io.Writer
}

// NewCLI returns a CLI handler reading from stdin and writing prompts to out.
func NewCLI(stdin *os.File, out io.Writer) *CLI {
	return &CLI{stdin: stdin, reader: bufio.NewReader(stdin), out: out}
}

func (c *CLI) RequestApproval(ctx context.Context, message string, screenshot []byte) (Decision, error) {
	if !c.isInteractive() {
		return GO, nil
	}

	fmt.Fprintf(c.out, "%s [y/N] ", message)
	line, err := c.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return NotGo, fmt.Errorf("failed to read approval: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "y" || answer == "yes" {
		return GO, nil
	}
	return NotGo, nil
}

func (c *CLI) isInteractive() bool {
	fd := c.stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false
	}
	return term.IsTerminal(int(fd))
}

var _ Handler = (*CLI)(nil)
