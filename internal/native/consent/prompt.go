package consent

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when there is no terminal to ask on
var ErrNotInteractive = errors.New("no terminal available to ask for calendar access")

// Prompter asks the user a yes/no question
type Prompter interface {
	Confirm(question string) (bool, error)
}

// TerminalPrompter asks on a terminal. It refuses to ask when In is not a
// terminal, so servers started by an MCP host never block on stdin.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter asks on stdin and writes to stderr
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	if !term.IsTerminal(int(p.In.Fd())) {
		return false, ErrNotInteractive
	}
	return askYesNo(p.In, p.Out, question)
}

// StaticPrompter answers every question the same way
type StaticPrompter struct {
	Answer bool
	Err    error
}

func (p StaticPrompter) Confirm(string) (bool, error) {
	return p.Answer, p.Err
}

func askYesNo(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
