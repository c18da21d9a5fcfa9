// Package logbook stores the captured output of one driver script run next to
// its results, and reads back the tail when a run needs to be reported.
package logbook

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName returns the log file name for a working directory name such as
// "pmp/meanclimate".
func FileName(workDirName string) string {
	name := strings.Trim(filepath.ToSlash(workDirName), "/")
	return "cmec-driver." + strings.ReplaceAll(name, "/", ".") + ".log.txt"
}

// Logbook persists subprocess output to a plain text file.
type Logbook struct {
	path string
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Write replaces the log contents with the full captured output.
func (l *Logbook) Write(output []byte) error {
	if l == nil {
		return nil
	}
	if err := os.WriteFile(l.path, output, 0o644); err != nil {
		return fmt.Errorf("logbook: write %s: %w", l.path, err)
	}
	return nil
}

// Tail returns up to maxLines of the most recent lines and the total line count.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, 0
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}
