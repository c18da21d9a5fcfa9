// Package runscript builds the cmec_run.bash environment script written into
// every target's working directory.
package runscript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
)

// FileName is the script name inside a working directory.
const FileName = "cmec_run.bash"

// Mode is applied to the script after writing.
const Mode os.FileMode = 0o775

// Script accumulates the lines of an environment script.
type Script struct {
	lines []string
}

// New starts a bash script.
func New() *Script {
	return &Script{lines: []string{"#!/bin/bash"}}
}

// Export appends an export line, quoting value when the shell needs it.
func (s *Script) Export(key, value string) {
	s.lines = append(s.lines, fmt.Sprintf("export %s=%s", key, Quote(value)))
}

// Comment appends a comment line.
func (s *Script) Comment(text string) {
	s.lines = append(s.lines, "# "+text)
}

// Blank appends an empty line.
func (s *Script) Blank() {
	s.lines = append(s.lines, "")
}

// Line appends raw shell text.
func (s *Script) Line(text string) {
	s.lines = append(s.lines, text)
}

// Lines returns a copy of the script lines.
func (s *Script) Lines() []string {
	return append([]string(nil), s.lines...)
}

func (s *Script) String() string {
	return strings.Join(s.lines, "\n") + "\n"
}

// WriteFile writes the script and marks it executable.
func (s *Script) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(s.String()), Mode); err != nil {
		return fmt.Errorf("runscript: write %s: %w", path, err)
	}
	if err := os.Chmod(path, Mode); err != nil {
		return fmt.Errorf("runscript: chmod %s: %w", path, err)
	}
	return nil
}

// DriverLine invokes driver through its interpreter when the extension names
// one, otherwise runs it directly.
func DriverLine(driver string) string {
	quoted := Quote(driver)
	switch filepath.Ext(driver) {
	case ".py":
		return "python " + quoted
	case ".r", ".R":
		return "Rscript " + quoted
	default:
		return quoted
	}
}

// Quote single-quotes value only when it contains shell metacharacters.
func Quote(value string) string {
	return shellescape.Quote(value)
}
