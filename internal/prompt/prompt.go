// Package prompt asks the user yes/no questions before destructive actions.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kingrea/cmec-driver/internal/tui"
)

// ErrNoAnswer is returned when input ends before a valid answer.
var ErrNoAnswer = errors.New("prompt: no answer")

// Prompter asks a yes/no question; def is returned for an empty answer.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
}

// Func adapts a function to Prompter.
type Func func(question string, def bool) (bool, error)

// Confirm implements Prompter.
func (f Func) Confirm(question string, def bool) (bool, error) {
	return f(question, def)
}

// Always answers every question with answer.
func Always(answer bool) Prompter {
	return Func(func(string, bool) (bool, error) { return answer, nil })
}

// Line reads answers line by line. It keeps asking until it gets y, yes, n,
// no or an empty line.
type Line struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLine returns a line prompter.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{in: bufio.NewReader(in), out: out}
}

// Confirm implements Prompter.
func (l *Line) Confirm(question string, def bool) (bool, error) {
	for {
		fmt.Fprintf(l.out, "%s [y/n] ", question)
		line, err := l.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("prompt: read answer: %w", err)
		}
		eof := err != nil
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			if !eof {
				return def, nil
			}
		}
		if eof {
			fmt.Fprintln(l.out)
			return false, ErrNoAnswer
		}
		fmt.Fprintln(l.out, "Please respond 'y' or 'n'")
	}
}

// Terminal asks through an interactive bubbletea prompt.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal returns an interactive prompter.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Confirm implements Prompter. Leaving the prompt counts as no answer.
func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	answer, err := tui.Confirm(t.in, t.out, question, def)
	if errors.Is(err, tui.ErrAborted) {
		return false, ErrNoAnswer
	}
	return answer, err
}

// ForStdio picks the interactive prompt when in is a terminal and the line
// protocol otherwise.
func ForStdio(in *os.File, out io.Writer) Prompter {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return NewTerminal(in, out)
	}
	return NewLine(in, out)
}
