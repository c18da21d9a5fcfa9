package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNothingConfigured(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(home, Overrides{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".cmeclibrary"), cfg.LibraryPath)
	require.Equal(t, filepath.Join(home, ".cmec", "cmec.json"), cfg.ConfigFile)
	require.Equal(t, filepath.Join(home, ".cmec"), cfg.ConfigDir())
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Log.JSON)
}

func TestLoadParsesSettingsFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cmec"), 0o755))
	settings := strings.TrimSpace(`
library_path: libs/cmec.json
log:
  level: DEBUG
  file: ~/.cmec/logs/driver.log
`)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cmec", "driver.yaml"), []byte(settings), 0o644))

	cfg, err := Load(home, Overrides{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "libs", "cmec.json"), cfg.LibraryPath)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, filepath.Join(home, ".cmec", "logs", "driver.log"), cfg.Log.File)
}

func TestEnvironmentAndOverridesTakePrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CMEC_DRIVER_LOG_LEVEL", "warn")
	t.Setenv("CMEC_DRIVER_CONFIG_FILE", "/tmp/cmec-env.json")

	cfg, err := Load(home, Overrides{})
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "/tmp/cmec-env.json", cfg.ConfigFile)

	cfg, err = Load(home, Overrides{LogLevel: "error", ConfigFile: "/tmp/flag.json"})
	require.NoError(t, err)
	require.Equal(t, "error", cfg.Log.Level)
	require.Equal(t, "/tmp/flag.json", cfg.ConfigFile)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	_, err := Load(t.TempDir(), Overrides{LogLevel: "loud"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "log.level")
}

func TestInitConfigDirCreatesDirectory(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(home, Overrides{})
	require.NoError(t, err)
	require.NoError(t, cfg.InitConfigDir())
	info, err := os.Stat(filepath.Join(home, ".cmec"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
