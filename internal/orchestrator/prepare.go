package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/logbook"
	"github.com/kingrea/cmec-driver/internal/mdtf"
	"github.com/kingrea/cmec-driver/internal/prompt"
	"github.com/kingrea/cmec-driver/internal/resolver"
	"github.com/kingrea/cmec-driver/internal/runscript"
)

const noneValue = "None"

// plan is a prepared target waiting to execute.
type plan struct {
	target     resolver.Target
	workDir    string
	scriptPath string
	logPath    string
	pod        *mdtf.Pod
	fields     *mdtf.Fieldlist
	podIndex   string
}

// prepare builds the script first so configuration errors surface before the
// working directory is touched, then recreates the directory and writes the
// script into it.
func (o *Orchestrator) prepare(b *batch, target resolver.Target, outcome *Outcome) (*plan, error) {
	workDir := filepath.Join(b.outputDir, filepath.FromSlash(target.WorkDirName))
	p := &plan{
		target:     target,
		workDir:    workDir,
		scriptPath: filepath.Join(workDir, runscript.FileName),
		logPath:    filepath.Join(workDir, logbook.FileName(target.WorkDirName)),
	}
	script, err := o.buildScript(b, p)
	if err != nil {
		return nil, err
	}

	if err := o.prepareDir(workDir, target.Specialized); err != nil {
		return nil, err
	}
	outcome.WorkDir = workDir
	outcome.State = StateDirectoryPrepared

	if p.pod != nil {
		index, err := o.hooks.CopyTemplate(*p.pod)
		if err != nil {
			return nil, err
		}
		p.podIndex = index
	}
	if err := script.WriteFile(p.scriptPath); err != nil {
		return nil, err
	}
	outcome.ScriptPath = p.scriptPath
	outcome.LogPath = p.logPath
	outcome.State = StateScriptWritten
	return p, nil
}

// prepareDir asks before clearing an existing working directory. Anything
// but an explicit yes (or an empty answer) leaves it alone and stops the run.
func (o *Orchestrator) prepareDir(workDir string, specialized bool) error {
	if _, err := os.Stat(workDir); err == nil {
		question := fmt.Sprintf("Path %s already exists. Overwrite?", workDir)
		overwrite, err := o.prompter.Confirm(question, true)
		if err != nil && !errors.Is(err, prompt.ErrNoAnswer) {
			return err
		}
		if err != nil || !overwrite {
			return cmecerr.New(cmecerr.KindOutputExists, "Unable to clear output directory %s", workDir)
		}
		if err := os.RemoveAll(workDir); err != nil {
			return fmt.Errorf("orchestrator: clear %s: %w", workDir, err)
		}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: create %s: %w", workDir, err)
	}
	if !specialized {
		return nil
	}
	for _, sub := range mdtf.WorkSubdirs {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0o755); err != nil {
			return fmt.Errorf("orchestrator: create %s: %w", sub, err)
		}
	}
	return nil
}

func (o *Orchestrator) buildScript(b *batch, p *plan) (*runscript.Script, error) {
	target := p.target
	obs := b.obsDir
	if obs == "" {
		obs = noneValue
	}
	condaSource, ok := o.lib.CondaRoot()
	if !ok {
		condaSource = noneValue
	}
	envRoot, ok := o.lib.EnvRoot()
	if !ok {
		envRoot = noneValue
	}

	script := runscript.New()
	script.Export("CMEC_CODE_DIR", absPath(target.CodeDir))
	script.Export("CMEC_OBS_DATA", obs)
	script.Export("CMEC_MODEL_DATA", b.modelDir)
	script.Export("CMEC_WK_DIR", p.workDir)
	script.Export("CMEC_CONFIG_DIR", b.configDir)
	script.Export("CONDA_SOURCE", condaSource)
	script.Export("CONDA_ENV_ROOT", envRoot)

	if target.Specialized {
		if err := o.writePodBlock(b, p, script); err != nil {
			return nil, err
		}
	}
	script.Line(runscript.DriverLine(target.DriverPath))
	return script, nil
}

func (o *Orchestrator) writePodBlock(b *batch, p *plan, script *runscript.Script) error {
	target := p.target
	if target.Family == nil {
		return fmt.Errorf("orchestrator: %s is missing POD metadata", target.WorkDirName)
	}
	settings, _ := o.runConfig.ModuleSettings(target.ConfigKey)
	if settings == nil {
		settings = map[string]any{}
	}
	pod := mdtf.Pod{
		Name:     target.Token,
		Home:     absPath(target.CodeDir),
		WorkDir:  p.workDir,
		ModelDir: b.modelDir,
		ObsDir:   b.obsDir,
		Metadata: target.Family,
		Settings: settings,
	}
	if _, err := pod.CaseName(); err != nil {
		return err
	}
	fields := &mdtf.Fieldlist{}
	if convention := pod.Convention(); convention != noneValue {
		loaded, err := mdtf.LoadFieldlist(target.Family.Root, convention, o.logger)
		if err != nil {
			return err
		}
		fields = loaded
	}
	block := mdtf.Block{Lookup: o.envLookup, Logger: o.logger}
	if err := block.Write(script, pod, fields); err != nil {
		return err
	}
	p.pod = &pod
	p.fields = fields
	return nil
}
