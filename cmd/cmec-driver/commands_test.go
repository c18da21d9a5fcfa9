package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
)

func execute(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	a := &app{homeDir: home}
	root := a.rootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, a.close())
	return out.String(), err
}

func demoModule(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "demo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"),
		[]byte(`{"settings": {"name": "demo", "long_name": "Demo", "driver": "demo.sh"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.sh"), []byte("#!/bin/sh\necho demo\n"), 0o755))
	return dir
}

func TestRegisterListUnregister(t *testing.T) {
	home := t.TempDir()
	out, err := execute(t, home, "register", demoModule(t))
	require.NoError(t, err)
	require.Contains(t, out, "Registered demo")
	require.FileExists(t, filepath.Join(home, ".cmeclibrary"))
	require.FileExists(t, filepath.Join(home, ".cmec", "cmec.json"))

	out, err = execute(t, home, "list", "--all")
	require.NoError(t, err)
	require.Contains(t, out, " demo [1 configuration]")

	_, err = execute(t, home, "unregister", "demo")
	require.NoError(t, err)
	_, err = execute(t, home, "list")
	require.ErrorIs(t, err, cmecerr.LibraryEmpty)
}

func TestRunPrintsSummary(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "register", demoModule(t))
	require.NoError(t, err)

	output := t.TempDir()
	out, err := execute(t, home, "run", t.TempDir(), output, "demo")
	require.NoError(t, err)
	require.Contains(t, out, "completed")
	require.Contains(t, out, "demo")
	require.FileExists(t, filepath.Join(output, "index.html"))
}

func TestRunNeedsModules(t *testing.T) {
	_, err := execute(t, t.TempDir(), "run", "model", "output")
	require.Error(t, err)
}

func TestLibraryFlagOverridesLocation(t *testing.T) {
	home := t.TempDir()
	lib := filepath.Join(t.TempDir(), "custom.json")
	_, err := execute(t, home, "--library", lib, "register", demoModule(t))
	require.NoError(t, err)
	require.FileExists(t, lib)
	require.NoFileExists(t, filepath.Join(home, ".cmeclibrary"))
}
