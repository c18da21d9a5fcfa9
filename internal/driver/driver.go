package driver

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/kingrea/cmec-driver/internal/config"
	"github.com/kingrea/cmec-driver/internal/library"
	"github.com/kingrea/cmec-driver/internal/logging"
	"github.com/kingrea/cmec-driver/internal/mdtf"
	"github.com/kingrea/cmec-driver/internal/orchestrator"
	"github.com/kingrea/cmec-driver/internal/prompt"
	"github.com/kingrea/cmec-driver/internal/runconfig"
)

// Options wires a Driver.
type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Prompter prompt.Prompter
	// Out receives list and setup reports. Defaults to stdout.
	Out io.Writer

	// The remaining fields are handed to the orchestrator on Run.
	EnvLookup mdtf.EnvLookup
	Hooks     orchestrator.FamilyHooks
	Shell     string
}

// Driver runs the operations against one configuration.
type Driver struct {
	cfg       *config.Config
	logger    *logging.Logger
	prompter  prompt.Prompter
	out       io.Writer
	envLookup mdtf.EnvLookup
	hooks     orchestrator.FamilyHooks
	shell     string
	// persist saves the library or run configuration.
	persist func(writer) error
}

type writer interface {
	Write() error
}

// New validates opts.
func New(opts Options) (*Driver, error) {
	if opts.Config == nil {
		return nil, errors.New("driver: config is required")
	}
	d := &Driver{
		cfg:       opts.Config,
		logger:    opts.Logger,
		prompter:  opts.Prompter,
		out:       opts.Out,
		envLookup: opts.EnvLookup,
		hooks:     opts.Hooks,
		shell:     opts.Shell,
		persist:   writer.Write,
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.prompter == nil {
		d.prompter = prompt.Always(true)
	}
	if d.out == nil {
		d.out = os.Stdout
	}
	return d, nil
}

func (d *Driver) openLibrary() (*library.Library, error) {
	d.logger.Debug("Reading CMEC library", "path", d.cfg.LibraryPath)
	lib := library.New(d.cfg.LibraryPath)
	if err := lib.Read(); err != nil {
		return nil, err
	}
	return lib, nil
}

func (d *Driver) openRunConfig() (*runconfig.Store, error) {
	if err := d.cfg.InitConfigDir(); err != nil {
		return nil, err
	}
	store, err := runconfig.New(d.cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := store.Read(); err != nil {
		return nil, err
	}
	return store, nil
}

// locked runs fn while holding the library lock.
func (d *Driver) locked(ctx context.Context, fn func() error) (err error) {
	unlock, err := library.Lock(ctx, d.cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}
