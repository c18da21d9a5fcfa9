package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/descriptor"
	"github.com/kingrea/cmec-driver/internal/library"
	"github.com/kingrea/cmec-driver/internal/prompt"
	"github.com/kingrea/cmec-driver/internal/runconfig"
)

// Register adds the module in dir to the library and seeds its entries in the
// run configuration. It returns the registered name.
func (d *Driver) Register(ctx context.Context, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("driver: resolve %s: %w", dir, err)
	}
	d.logger.Info("Registering module", "path", abs)
	desc, err := descriptor.Open(abs, descriptor.WithLogger(d.logger))
	if err != nil {
		return "", err
	}
	name := desc.Name()
	if contents, ok := desc.(*descriptor.Contents); ok {
		d.logger.Info("Module "+name+" "+contents.LongName(), "configurations", contents.Size())
		for _, c := range contents.Configurations() {
			d.logger.Info("  " + c.Key)
		}
	}

	err = d.locked(ctx, func() error {
		lib, err := d.openLibrary()
		if err != nil {
			return err
		}
		store, err := d.openRunConfig()
		if err != nil {
			return err
		}
		if err := lib.Insert(name, abs); err != nil {
			return err
		}
		if declaresFamily(desc) || library.MatchesFamilyLayout(abs) {
			d.logger.Info("Module follows the MDTF POD conventions", "module", name)
			if err := lib.SetFamily(name, library.FamilyMDTF); err != nil {
				return err
			}
		}
		d.logger.Debug("Writing CMEC library", "path", lib.Path())
		if err := d.persist(lib); err != nil {
			return err
		}
		if err := d.seed(store, desc, lib.IsSpecialized(name)); err != nil {
			d.logger.Error("Could not write default settings; removing module from library", "module", name, "err", err)
			if rerr := lib.Remove(name); rerr == nil {
				if werr := d.persist(lib); werr != nil {
					return errors.Join(err, werr)
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// seed writes default settings for every configuration of desc. Keys that
// already exist are only replaced when the user agrees.
func (d *Driver) seed(store *runconfig.Store, desc descriptor.Descriptor, specialized bool) error {
	entries := map[string]any{}
	for _, c := range desc.Configurations() {
		if store.Has(c.Key) {
			question := fmt.Sprintf("Settings for %s already exist in %s. Overwrite?", c.Key, filepath.Base(store.Path()))
			overwrite, err := d.prompter.Confirm(question, true)
			if err != nil && !errors.Is(err, prompt.ErrNoAnswer) {
				return err
			}
			if err != nil || !overwrite {
				d.logger.Warn("Skip writing default parameters. This may affect module performance.", "key", c.Key)
				continue
			}
		}
		entries[c.Key] = defaultSettings(c.Settings, specialized)
	}
	if len(entries) == 0 {
		return nil
	}
	d.logger.Info("Writing default settings", "path", store.Path())
	store.Update(entries)
	return d.persist(store)
}

func defaultSettings(settings *descriptor.Settings, specialized bool) map[string]any {
	if params, ok := settings.DefaultParameters(); ok {
		return params
	}
	if specialized {
		return map[string]any{
			"CASENAME":   "",
			"model":      "",
			"convention": "",
			"FIRSTYR":    nil,
			"LASTYR":     nil,
		}
	}
	return map[string]any{}
}

func declaresFamily(desc descriptor.Descriptor) bool {
	for _, c := range desc.Configurations() {
		if c.Settings.DeclaresFamily() {
			return true
		}
	}
	return false
}

// Unregister removes a module and its run configuration entries.
func (d *Driver) Unregister(ctx context.Context, name string) error {
	return d.locked(ctx, func() error {
		lib, err := d.openLibrary()
		if err != nil {
			return err
		}
		dir := lib.Find(name)
		if dir == "" {
			return cmecerr.New(cmecerr.KindModuleNotFound, "Module %s not found in library", name)
		}
		store, err := d.openRunConfig()
		if err != nil {
			return err
		}
		snapshot := store.Snapshot()
		d.logger.Info("Removing configuration", "module", name)
		for _, key := range d.configKeys(store, name, dir) {
			store.Remove(key)
		}
		if err := d.persist(store); err != nil {
			return err
		}

		d.logger.Info("Removing module", "module", name)
		if err := lib.Remove(name); err != nil {
			return err
		}
		if err := d.persist(lib); err != nil {
			store.Restore(snapshot)
			if werr := d.persist(store); werr != nil {
				return errors.Join(err, werr)
			}
			return err
		}
		return nil
	})
}

// configKeys lists the run configuration keys owned by a module. When the
// module directory can no longer be read, keys are matched by name.
func (d *Driver) configKeys(store *runconfig.Store, name, dir string) []string {
	desc, err := descriptor.Open(dir, descriptor.WithLogger(d.logger))
	if err == nil {
		var keys []string
		for _, c := range desc.Configurations() {
			keys = append(keys, c.Key)
		}
		return keys
	}
	d.logger.Warn("Could not read module descriptor; removing settings by name", "module", name, "err", err)
	var keys []string
	for _, key := range store.Keys() {
		if key == name || strings.HasPrefix(key, name+"/") {
			keys = append(keys, key)
		}
	}
	return keys
}
