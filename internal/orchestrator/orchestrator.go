package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/library"
	"github.com/kingrea/cmec-driver/internal/logging"
	"github.com/kingrea/cmec-driver/internal/mdtf"
	"github.com/kingrea/cmec-driver/internal/prompt"
	"github.com/kingrea/cmec-driver/internal/resolver"
	"github.com/kingrea/cmec-driver/internal/results"
	"github.com/kingrea/cmec-driver/internal/runconfig"
)

// DefaultShell runs cmec_run.bash.
const DefaultShell = "bash"

// FamilyHooks handles the html and figure conventions of MDTF PODs.
type FamilyHooks interface {
	CopyTemplate(pod mdtf.Pod) (string, error)
	Finish(ctx context.Context, pod mdtf.Pod, fields *mdtf.Fieldlist)
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Library   *library.Library
	RunConfig *runconfig.Store
	Prompter  prompt.Prompter
	Logger    *logging.Logger
	// EnvLookup names the conda environment of a POD.
	EnvLookup mdtf.EnvLookup
	// Hooks defaults to an mdtf.PostProcessor using the library's conda
	// settings.
	Hooks FamilyHooks
	Shell string
}

// Request describes one batch.
type Request struct {
	// ObsDir is optional.
	ObsDir    string
	ModelDir  string
	OutputDir string
	Targets   []resolver.Target
}

// Orchestrator runs batches of targets sequentially.
type Orchestrator struct {
	lib       *library.Library
	runConfig *runconfig.Store
	prompter  prompt.Prompter
	logger    *logging.Logger
	envLookup mdtf.EnvLookup
	hooks     FamilyHooks
	shell     string
}

// New validates opts and fills defaults.
func New(opts Options) (*Orchestrator, error) {
	if opts.Library == nil {
		return nil, errors.New("orchestrator: library is required")
	}
	if opts.RunConfig == nil {
		return nil, errors.New("orchestrator: run configuration is required")
	}
	if opts.Prompter == nil {
		return nil, errors.New("orchestrator: prompter is required")
	}
	o := &Orchestrator{
		lib:       opts.Library,
		runConfig: opts.RunConfig,
		prompter:  opts.Prompter,
		logger:    opts.Logger,
		envLookup: opts.EnvLookup,
		hooks:     opts.Hooks,
		shell:     opts.Shell,
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if o.envLookup == nil {
		o.envLookup = mdtf.EnvironmentFor
	}
	if o.shell == "" {
		o.shell = DefaultShell
	}
	if o.hooks == nil {
		condaSource, _ := o.lib.CondaRoot()
		envRoot, _ := o.lib.EnvRoot()
		o.hooks = &mdtf.PostProcessor{CondaSource: condaSource, EnvRoot: envRoot, Logger: o.logger}
	}
	return o, nil
}

// batch carries the resolved paths of one Run call.
type batch struct {
	id        string
	obsDir    string
	modelDir  string
	outputDir string
	configDir string
}

// Run prepares every target, then executes them in order. Preparation errors
// are fatal and stop the batch before any script runs; script failures are
// recorded in the outcomes. The results index is written once at the end.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]Outcome, error) {
	b, err := o.newBatch(req)
	if err != nil {
		return nil, err
	}
	log := o.logger.With("run", b.id)
	o.announce(b, req.Targets)

	index := results.New(b.outputDir)
	if err := index.Read(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(req.Targets))
	plans := make([]*plan, 0, len(req.Targets))
	for _, target := range req.Targets {
		outcome := Outcome{Target: target, State: StateResolved}
		p, err := o.prepare(b, target, &outcome)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
		plans = append(plans, p)
	}

	log.Info("Executing driver scripts", "count", len(plans))
	for i, p := range plans {
		o.execute(ctx, p, &outcomes[i])
		o.bookkeep(ctx, p, &outcomes[i], index.Fs())
		index.Link(p.target.WorkDirName, filepath.Join(p.target.WorkDirName, outcomes[i].IndexPage))
		outcomes[i].State = StateIndexed
	}
	if err := index.Write(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (o *Orchestrator) newBatch(req Request) (*batch, error) {
	if len(req.Targets) == 0 {
		return nil, cmecerr.New(cmecerr.KindNoDriversFound, "No targets to run")
	}
	modelDir, err := existingDir("Model", req.ModelDir)
	if err != nil {
		return nil, err
	}
	outputDir, err := existingDir("Working", req.OutputDir)
	if err != nil {
		return nil, err
	}
	obsDir := ""
	if req.ObsDir != "" {
		if obsDir, err = existingDir("Observations", req.ObsDir); err != nil {
			return nil, err
		}
	}
	return &batch{
		id:        uuid.NewString(),
		obsDir:    obsDir,
		modelDir:  modelDir,
		outputDir: outputDir,
		configDir: absPath(filepath.Dir(o.runConfig.Path())),
	}, nil
}

func existingDir(label, dir string) (string, error) {
	if dir == "" {
		return "", cmecerr.New(cmecerr.KindInvalidDirectory, "%s data path not specified", label)
	}
	abs := absPath(dir)
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", cmecerr.New(cmecerr.KindInvalidDirectory, "%s does not exist or is not a directory", abs)
	}
	return abs, nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

func (o *Orchestrator) announce(b *batch, targets []resolver.Target) {
	o.logger.Info(fmt.Sprintf("The following %d modules will be executed", len(targets)))
	for _, t := range targets {
		o.logger.Info("module", "name", t.WorkDirName, "path", t.CodeDir, "driver", t.DriverPath)
	}
	obs := b.obsDir
	if obs == "" {
		obs = noneValue
	}
	o.logger.Info("The following environment variables will be set",
		"CMEC_OBS_DATA", obs,
		"CMEC_MODEL_DATA", b.modelDir,
		"CMEC_WK_DIR", filepath.Join(b.outputDir, "$MODULE_NAME"),
		"CMEC_CODE_DIR", "$MODULE_PATH",
		"CMEC_CONFIG_DIR", b.configDir)
}
