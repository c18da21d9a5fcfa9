package driver

import (
	"context"

	"github.com/kingrea/cmec-driver/internal/orchestrator"
	"github.com/kingrea/cmec-driver/internal/resolver"
)

// RunOptions names the data directories and the modules of one run.
type RunOptions struct {
	ObsDir    string
	ModelDir  string
	OutputDir string
	// Modules are "module" or "module/configuration" tokens.
	Modules []string
}

// Run resolves the requested modules and executes them. Script failures are
// reported in the outcomes; the error is reserved for problems that stop the
// batch.
func (d *Driver) Run(ctx context.Context, opts RunOptions) ([]orchestrator.Outcome, error) {
	lib, err := d.openLibrary()
	if err != nil {
		return nil, err
	}
	store, err := d.openRunConfig()
	if err != nil {
		return nil, err
	}
	targets, err := resolver.New(lib, resolver.WithLogger(d.logger)).Resolve(opts.Modules)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Options{
		Library:   lib,
		RunConfig: store,
		Prompter:  d.prompter,
		Logger:    d.logger,
		EnvLookup: d.envLookup,
		Hooks:     d.hooks,
		Shell:     d.shell,
	})
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, orchestrator.Request{
		ObsDir:    opts.ObsDir,
		ModelDir:  opts.ModelDir,
		OutputDir: opts.OutputDir,
		Targets:   targets,
	})
}
