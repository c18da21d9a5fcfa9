package orchestrator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/kingrea/cmec-driver/internal/logbook"
	"github.com/kingrea/cmec-driver/internal/results"
	"github.com/kingrea/cmec-driver/internal/runscript"
)

// ManifestFileName is the optional manifest a driver may write to name its
// result page.
const ManifestFileName = "output.json"

// execute runs the script and stores its combined output. A non-zero exit is
// recorded on the outcome, never returned.
func (o *Orchestrator) execute(ctx context.Context, p *plan, outcome *Outcome) {
	name := p.target.WorkDirName
	cmd := exec.CommandContext(ctx, o.shell, p.scriptPath)
	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		outcome.ExitCode = 0
	case errors.As(err, &exitErr):
		outcome.ExitCode = exitErr.ExitCode()
		outcome.Failed = true
	default:
		outcome.ExitCode = -1
		outcome.Failed = true
		outcome.Err = err
		output = append(output, []byte(err.Error()+"\n")...)
	}

	book, berr := logbook.New(p.logPath)
	if berr == nil {
		berr = book.Write(output)
	}
	if berr != nil {
		o.logger.Warn("could not write driver log", "module", name, "err", berr)
	}

	if outcome.Failed {
		o.logger.Error("Module failed", "module", name, "code", outcome.ExitCode)
	} else {
		o.logger.Info("Module completed", "module", name)
	}
	o.logger.Info("See cmec-driver log", "path", p.logPath)
	outcome.State = StateExecuted
}

// bookkeep settles the result page of a target: a manifest's index entry
// wins, PODs use their own html page, and everything else gets index.html,
// generated when the driver did not write one.
func (o *Orchestrator) bookkeep(ctx context.Context, p *plan, outcome *Outcome, fsys afero.Fs) {
	page := results.IndexFileName
	switch data, err := os.ReadFile(filepath.Join(p.workDir, ManifestFileName)); {
	case err == nil:
		if index := gjson.GetBytes(data, "index"); index.Exists() && index.String() != "" {
			page = index.String()
		}
	case p.pod != nil:
		o.hooks.Finish(ctx, *p.pod, p.fields)
		if p.podIndex != "" {
			page = p.podIndex
		}
	default:
		if ok, _ := afero.Exists(fsys, filepath.Join(p.workDir, page)); !ok {
			if err := results.WriteDefaultPage(fsys, p.workDir, p.target.WorkDirName, page, runscript.FileName); err != nil {
				o.logger.Warn("could not write default results page", "module", p.target.WorkDirName, "err", err)
			}
		}
	}
	outcome.IndexPage = page
}
