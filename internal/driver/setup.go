package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/library"
)

// SetupOptions selects the conda settings to change or report.
type SetupOptions struct {
	CondaSource string
	EnvRoot     string
	// Clear removes both conda settings after any new values are applied.
	Clear bool
	Print bool
}

func (o SetupOptions) mutates() bool {
	return o.CondaSource != "" || o.EnvRoot != "" || o.Clear
}

// Setup records where conda lives so MDTF PODs can activate their
// environments. The library is only rewritten when something changed.
func (d *Driver) Setup(ctx context.Context, opts SetupOptions) error {
	if !opts.mutates() && !opts.Print {
		return nil
	}
	return d.locked(ctx, func() error {
		lib, err := d.openLibrary()
		if err != nil {
			return err
		}
		if opts.CondaSource != "" {
			path, err := existingPath("Conda install location", opts.CondaSource)
			if err != nil {
				return err
			}
			d.logger.Info("Setting conda root", "path", path)
			lib.SetCondaRoot(path)
		}
		if opts.EnvRoot != "" {
			path, err := existingPath("Environment directory", opts.EnvRoot)
			if err != nil {
				return err
			}
			d.logger.Info("Setting environment root", "path", path)
			lib.SetEnvRoot(path)
		}
		if opts.Clear {
			d.logger.Info("Clearing conda settings")
			lib.ClearCondaRoot()
			lib.ClearEnvRoot()
		}
		if opts.Print {
			d.printConda(lib)
		}
		if !opts.mutates() {
			return nil
		}
		d.logger.Debug("Writing CMEC library", "path", lib.Path())
		return lib.Write()
	})
}

func (d *Driver) printConda(lib *library.Library) {
	source, ok := lib.CondaRoot()
	if !ok {
		source = "None"
	}
	envRoot, ok := lib.EnvRoot()
	if !ok {
		envRoot = "None"
	}
	fmt.Fprintln(d.out, "Conda settings:")
	fmt.Fprintf(d.out, "  Source: %s\n", source)
	fmt.Fprintf(d.out, "  Environments: %s\n", envRoot)
}

func existingPath(label, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("driver: resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", cmecerr.Wrap(cmecerr.KindInvalidDirectory, err, "%s does not exist", label)
	}
	return abs, nil
}
