package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"

	"github.com/kingrea/cmec-driver/internal/config"
)

// Logger writes leveled driver messages to the console and, when configured,
// appends the same lines to a log file so failed runs can be inspected later.
type Logger struct {
	*charmlog.Logger
	file *os.File
}

// New builds a logger writing to out plus the configured log file.
func New(cfg config.LogConfig, out io.Writer) (*Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	var file *os.File
	writer := out
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		file = f
		writer = io.MultiWriter(out, f)
	}
	level, err := charmlog.ParseLevel(cfg.Level)
	if err != nil {
		level = charmlog.InfoLevel
	}
	logger := charmlog.NewWithOptions(writer, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
		Prefix:          "cmec-driver",
	})
	if cfg.JSON {
		logger.SetFormatter(charmlog.JSONFormatter)
	}
	return &Logger{Logger: logger, file: file}, nil
}

// Discard returns a logger that drops everything. Used by tests and library
// callers that do not care about progress output.
func Discard() *Logger {
	return &Logger{Logger: charmlog.New(io.Discard)}
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
