package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/cmec-driver/internal/config"
)

func TestLoggerWritesToConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "driver.log")
	logger, err := New(config.LogConfig{Level: "info", File: path}, &console)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	logger.Info("Registering module", "path", "/modules/demo")
	logger.Debug("hidden at info level")

	require.Contains(t, console.String(), "Registering module")
	require.NotContains(t, console.String(), "hidden at info level")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "/modules/demo")
}

func TestLoggerJSONFormatter(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(config.LogConfig{Level: "debug", JSON: true}, &console)
	require.NoError(t, err)
	logger.Warn("module failed", "code", 2)
	require.Contains(t, console.String(), `"msg":"module failed"`)
}

func TestDiscardAndNilClose(t *testing.T) {
	Discard().Info("nothing")
	var l *Logger
	require.NoError(t, l.Close())
}
