package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/config"
	"github.com/kingrea/cmec-driver/internal/library"
	"github.com/kingrea/cmec-driver/internal/prompt"
	"github.com/kingrea/cmec-driver/internal/runconfig"
)

type harness struct {
	cfg *config.Config
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default(t.TempDir())
	return &harness{cfg: &cfg, out: &bytes.Buffer{}}
}

func (h *harness) driver(t *testing.T, p prompt.Prompter) *Driver {
	t.Helper()
	d, err := New(Options{Config: h.cfg, Prompter: p, Out: h.out, Shell: "sh"})
	require.NoError(t, err)
	return d
}

func (h *harness) library(t *testing.T) *library.Library {
	t.Helper()
	lib := library.New(h.cfg.LibraryPath)
	require.NoError(t, lib.Read())
	return lib
}

func (h *harness) runConfig(t *testing.T) *runconfig.Store {
	t.Helper()
	store, err := runconfig.New(h.cfg.ConfigFile)
	require.NoError(t, err)
	require.NoError(t, store.Read())
	return store
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func settingsModule(t *testing.T, parent, name, extra string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	writeFile(t, filepath.Join(dir, "settings.json"),
		`{"settings": {"name": "`+name+`", "long_name": "`+name+` module", "driver": "driver.sh"}`+extra+`}`, 0o644)
	writeFile(t, filepath.Join(dir, "driver.sh"), "#!/bin/sh\necho \"running in $CMEC_WK_DIR\"\n", 0o755)
	return dir
}

func contentsModule(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pmp")
	writeFile(t, filepath.Join(dir, "contents.json"), `{
  "module": {"name": "pmp", "long_name": "PCMDI Metrics Package"},
  "contents": ["mean/settings.json", "variability/settings.json"]
}`, 0o644)
	writeFile(t, filepath.Join(dir, "mean", "settings.json"),
		`{"settings": {"name": "meanclimate", "driver": "mean/run.sh"}, "default_parameters": {"regions": ["global"]}}`, 0o644)
	writeFile(t, filepath.Join(dir, "variability", "settings.json"),
		`{"settings": {"name": "variability", "driver": "variability/run.sh"}}`, 0o644)
	writeFile(t, filepath.Join(dir, "mean", "run.sh"), "#!/bin/sh\necho mean\n", 0o755)
	writeFile(t, filepath.Join(dir, "variability", "run.sh"), "#!/bin/sh\necho variability\n", 0o755)
	return dir
}

func TestRegisterSeedsEmptySettings(t *testing.T) {
	h := newHarness(t)
	dir := settingsModule(t, t.TempDir(), "demo", "")

	name, err := h.driver(t, prompt.Always(true)).Register(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "demo", name)

	lib := h.library(t)
	require.Equal(t, dir, lib.Find("demo"))
	require.False(t, lib.IsSpecialized("demo"))
	settings, ok := h.runConfig(t).ModuleSettings("demo")
	require.True(t, ok)
	require.Empty(t, settings)
}

func TestRegisterContentsSeedsEveryConfiguration(t *testing.T) {
	h := newHarness(t)
	_, err := h.driver(t, prompt.Always(true)).Register(context.Background(), contentsModule(t))
	require.NoError(t, err)

	store := h.runConfig(t)
	mean, ok := store.ModuleSettings("pmp/meanclimate")
	require.True(t, ok)
	require.Equal(t, []any{"global"}, mean["regions"])
	variability, ok := store.ModuleSettings("pmp/variability")
	require.True(t, ok)
	require.Empty(t, variability)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	h := newHarness(t)
	parent := t.TempDir()
	d := h.driver(t, prompt.Always(true))
	_, err := d.Register(context.Background(), settingsModule(t, parent, "demo", ""))
	require.NoError(t, err)

	other := settingsModule(t, t.TempDir(), "demo", "")
	_, err = d.Register(context.Background(), other)
	require.ErrorIs(t, err, cmecerr.DuplicateModule)
	require.Equal(t, filepath.Join(parent, "demo"), h.library(t).Find("demo"))
}

func TestRegisterAsksBeforeReplacingSettings(t *testing.T) {
	h := newHarness(t)
	store := h.runConfig(t)
	store.Update(map[string]any{"demo": map[string]any{"keep": true}})
	require.NoError(t, store.Write())
	dir := settingsModule(t, t.TempDir(), "demo", `, "default_parameters": {"fresh": 1}`)

	var asked []string
	refuse := prompt.Func(func(q string, _ bool) (bool, error) {
		asked = append(asked, q)
		return false, nil
	})
	_, err := h.driver(t, refuse).Register(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, asked, 1)
	require.Contains(t, asked[0], "demo")
	settings, _ := h.runConfig(t).ModuleSettings("demo")
	require.Equal(t, true, settings["keep"])

	require.NoError(t, h.driver(t, prompt.Always(true)).Unregister(context.Background(), "demo"))
	store = h.runConfig(t)
	store.Update(map[string]any{"demo": map[string]any{"keep": true}})
	require.NoError(t, store.Write())
	_, err = h.driver(t, prompt.Always(true)).Register(context.Background(), dir)
	require.NoError(t, err)
	settings, _ = h.runConfig(t).ModuleSettings("demo")
	require.NotContains(t, settings, "keep")
	require.Contains(t, settings, "fresh")
}

// failWrites makes d fail to save stores of type T.
func failWrites[T writer](d *Driver, cause error) {
	d.persist = func(w writer) error {
		if _, ok := w.(T); ok {
			return cause
		}
		return w.Write()
	}
}

func TestRegisterRollsBackLibraryWhenSettingsWriteFails(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	diskFull := errors.New("disk full")
	failWrites[*runconfig.Store](d, diskFull)

	_, err := d.Register(context.Background(), contentsModule(t))
	require.ErrorIs(t, err, diskFull)
	require.Zero(t, h.library(t).Size())
	require.Empty(t, h.runConfig(t).Keys())
}

func TestRegisterRollsBackLibraryWhenPromptFails(t *testing.T) {
	h := newHarness(t)
	store := h.runConfig(t)
	store.Update(map[string]any{"demo": map[string]any{"keep": true}})
	require.NoError(t, store.Write())
	closed := errors.New("terminal closed")
	broken := prompt.Func(func(string, bool) (bool, error) { return false, closed })

	_, err := h.driver(t, broken).Register(context.Background(), settingsModule(t, t.TempDir(), "demo", ""))
	require.ErrorIs(t, err, closed)
	require.Empty(t, h.library(t).Find("demo"))
	settings, _ := h.runConfig(t).ModuleSettings("demo")
	require.Equal(t, true, settings["keep"])
}

func TestRegisterDetectsMDTFLayout(t *testing.T) {
	h := newHarness(t)
	parent := filepath.Join(t.TempDir(), "MDTF-diagnostics", "diagnostics")
	dir := settingsModule(t, parent, "example", "")

	_, err := h.driver(t, prompt.Always(true)).Register(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, h.library(t).IsSpecialized("example"))
	settings, ok := h.runConfig(t).ModuleSettings("example")
	require.True(t, ok)
	require.Equal(t, "", settings["CASENAME"])
	require.Contains(t, settings, "FIRSTYR")
	require.Nil(t, settings["LASTYR"])
}

func TestRegisterDetectsDeclaredFamily(t *testing.T) {
	h := newHarness(t)
	dir := filepath.Join(t.TempDir(), "pod")
	writeFile(t, filepath.Join(dir, "settings.jsonc"), `{
  // POD descriptor
  "settings": {"driver": "pod.py", "runtime_requirements": {"python3": ["numpy"]}},
  "varlist": {"pr": {"standard_name": "precipitation_flux"}},
}`, 0o644)

	name, err := h.driver(t, prompt.Always(true)).Register(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "pod", name)
	require.True(t, h.library(t).IsSpecialized("pod"))
}

func TestRegisterRequiresDescriptor(t *testing.T) {
	h := newHarness(t)
	_, err := h.driver(t, prompt.Always(true)).Register(context.Background(), t.TempDir())
	require.ErrorIs(t, err, cmecerr.NoDescriptor)
	require.Zero(t, h.library(t).Size())
}

func TestUnregisterRemovesModuleAndSettings(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	_, err := d.Register(context.Background(), contentsModule(t))
	require.NoError(t, err)
	store := h.runConfig(t)
	store.Update(map[string]any{"other": map[string]any{}})
	require.NoError(t, store.Write())

	require.NoError(t, d.Unregister(context.Background(), "pmp"))
	require.Zero(t, h.library(t).Size())
	require.ElementsMatch(t, []string{"other"}, h.runConfig(t).Keys())

	err = d.Unregister(context.Background(), "pmp")
	require.ErrorIs(t, err, cmecerr.ModuleNotFound)
}

func TestUnregisterRestoresSettingsWhenLibraryWriteFails(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	dir := contentsModule(t)
	_, err := d.Register(context.Background(), dir)
	require.NoError(t, err)
	before := h.runConfig(t).Keys()
	require.ElementsMatch(t, []string{"pmp/meanclimate", "pmp/variability"}, before)

	readOnly := errors.New("read-only file system")
	failWrites[*library.Library](d, readOnly)
	err = d.Unregister(context.Background(), "pmp")
	require.ErrorIs(t, err, readOnly)
	require.Equal(t, dir, h.library(t).Find("pmp"))
	require.ElementsMatch(t, before, h.runConfig(t).Keys())
	settings, ok := h.runConfig(t).ModuleSettings("pmp/meanclimate")
	require.True(t, ok)
	require.Equal(t, []any{"global"}, settings["regions"])
}

func TestUnregisterWithoutModuleDirectory(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	dir := contentsModule(t)
	_, err := d.Register(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	require.NoError(t, d.Unregister(context.Background(), "pmp"))
	require.Empty(t, h.runConfig(t).Keys())
}

func TestListReportsModules(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	require.ErrorIs(t, d.List(false), cmecerr.LibraryEmpty)

	_, err := d.Register(context.Background(), contentsModule(t))
	require.NoError(t, err)
	_, err = d.Register(context.Background(), settingsModule(t, t.TempDir(), "demo", ""))
	require.NoError(t, err)

	require.NoError(t, d.List(false))
	out := h.out.String()
	require.Contains(t, out, "CMEC library contains 2 modules")
	require.Contains(t, out, " demo [1 configuration]")
	require.Contains(t, out, " pmp [2 configurations]")
	require.NotContains(t, out, "pmp/meanclimate")

	h.out.Reset()
	require.NoError(t, d.List(true))
	require.Contains(t, h.out.String(), "    pmp/meanclimate\n    pmp/variability\n")
}

func TestSetupCondaSettings(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	ctx := context.Background()

	err := d.Setup(ctx, SetupOptions{CondaSource: filepath.Join(t.TempDir(), "missing")})
	require.ErrorIs(t, err, cmecerr.InvalidDirectory)

	source := filepath.Join(t.TempDir(), "conda.sh")
	writeFile(t, source, "", 0o644)
	envs := t.TempDir()
	require.NoError(t, d.Setup(ctx, SetupOptions{CondaSource: source, EnvRoot: envs, Print: true}))
	lib := h.library(t)
	got, ok := lib.CondaRoot()
	require.True(t, ok)
	require.Equal(t, source, got)
	got, ok = lib.EnvRoot()
	require.True(t, ok)
	require.Equal(t, envs, got)
	require.Contains(t, h.out.String(), "  Source: "+source)

	h.out.Reset()
	require.NoError(t, d.Setup(ctx, SetupOptions{Clear: true, Print: true}))
	_, ok = h.library(t).CondaRoot()
	require.False(t, ok)
	require.Contains(t, h.out.String(), "  Environments: None")
}

func TestRunExecutesRegisteredModules(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	ctx := context.Background()
	_, err := d.Register(ctx, settingsModule(t, t.TempDir(), "demo", ""))
	require.NoError(t, err)
	_, err = d.Register(ctx, contentsModule(t))
	require.NoError(t, err)

	output := t.TempDir()
	outcomes, err := d.Run(ctx, RunOptions{ModelDir: t.TempDir(), OutputDir: output, Modules: []string{"demo", "pmp"}})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	require.Equal(t, "demo", outcomes[0].Target.WorkDirName)
	require.Equal(t, "pmp/meanclimate", outcomes[1].Target.WorkDirName)
	require.Equal(t, "pmp/variability", outcomes[2].Target.WorkDirName)
	for _, outcome := range outcomes {
		require.True(t, outcome.Succeeded(), outcome.Target.WorkDirName)
	}
	require.FileExists(t, filepath.Join(output, "pmp", "meanclimate", "cmec_run.bash"))
	index, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), `href="demo/index.html"`)
	require.Contains(t, string(index), `href="pmp/variability/index.html"`)
}

func TestRunWritesScriptWhenDriverIsMissing(t *testing.T) {
	h := newHarness(t)
	d := h.driver(t, prompt.Always(true))
	dir := filepath.Join(t.TempDir(), "demo")
	writeFile(t, filepath.Join(dir, "settings.json"), `{"settings":{"driver":"run.sh","name":"demo"}}`, 0o644)
	_, err := d.Register(context.Background(), dir)
	require.NoError(t, err)

	output := t.TempDir()
	outcomes, err := d.Run(context.Background(), RunOptions{ModelDir: t.TempDir(), OutputDir: output, Modules: []string{"demo"}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Failed)
	require.FileExists(t, filepath.Join(output, "demo", "cmec_run.bash"))
	require.FileExists(t, filepath.Join(output, "index.html"))
}

func TestRunRejectsInvalidTokens(t *testing.T) {
	h := newHarness(t)
	_, err := h.driver(t, prompt.Always(true)).Run(context.Background(), RunOptions{
		ModelDir:  t.TempDir(),
		OutputDir: t.TempDir(),
		Modules:   []string{"Bad-Name"},
	})
	require.ErrorIs(t, err, cmecerr.InvalidModuleName)
}
