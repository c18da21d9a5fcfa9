package resolver

import (
	"path/filepath"
	"strings"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/descriptor"
	"github.com/kingrea/cmec-driver/internal/library"
	"github.com/kingrea/cmec-driver/internal/logging"
	"github.com/kingrea/cmec-driver/internal/mdtf"
)

// Target is one runnable configuration produced from a user token.
type Target struct {
	Token      string
	ModuleName string
	ConfigName string
	// ModuleDir is the registered module directory.
	ModuleDir string
	// CodeDir is the directory holding the configuration's settings file.
	CodeDir    string
	DriverPath string
	// WorkDirName is relative to the run's output root.
	WorkDirName string
	// ConfigKey addresses the target's entry in the run configuration file.
	ConfigKey   string
	Settings    *descriptor.Settings
	Specialized bool
	// Family is set for specialized targets only.
	Family *mdtf.Metadata
}

// Resolver maps tokens to targets using the module library.
type Resolver struct {
	lib    *library.Library
	logger *logging.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger routes resolution warnings through logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a resolver over an already-read library.
func New(lib *library.Library, opts ...Option) *Resolver {
	r := &Resolver{lib: lib, logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands tokens in order. A module with a contents file expands to
// its configurations in contents order unless the token names one of them.
func (r *Resolver) Resolve(tokens []string) ([]Target, error) {
	var targets []Target
	for _, token := range tokens {
		resolved, err := r.resolveToken(token)
		if err != nil {
			return nil, err
		}
		targets = append(targets, resolved...)
	}
	if len(targets) == 0 {
		return nil, cmecerr.New(cmecerr.KindNoDriversFound, "No driver files found for %s", strings.Join(tokens, " "))
	}
	return targets, nil
}

func (r *Resolver) resolveToken(token string) ([]Target, error) {
	moduleName, configName, err := SplitToken(token)
	if err != nil {
		return nil, err
	}
	moduleDir := r.lib.Find(moduleName)
	if moduleDir == "" {
		return nil, cmecerr.New(cmecerr.KindModuleNotFound, "Module %s not found in CMEC library", moduleName)
	}
	specialized := r.lib.IsSpecialized(moduleName)

	desc, err := descriptor.Open(moduleDir, descriptor.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	var configs []descriptor.Configuration
	switch d := desc.(type) {
	case *descriptor.Settings:
		if configName != "" {
			return nil, cmecerr.New(cmecerr.KindUnexpectedConfiguration,
				"Module %s only contains a single configuration; cannot run %s", moduleName, token)
		}
		configs = d.Configurations()
	case *descriptor.Contents:
		for _, cfg := range d.Configurations() {
			if configName == "" || cfg.Name == configName {
				configs = append(configs, cfg)
			}
		}
		if configName != "" && len(configs) == 0 {
			return nil, cmecerr.New(cmecerr.KindConfigurationNotFound,
				"Module %s does not contain configuration %s", moduleName, configName)
		}
	}

	targets := make([]Target, 0, len(configs))
	for _, cfg := range configs {
		codeDir := filepath.Dir(cfg.Settings.Path())
		if desc.Kind() == descriptor.KindSettings {
			codeDir = moduleDir
		}
		driverPath := cfg.Settings.DriverPath(moduleDir)
		if driverPath == "" {
			driverPath = cfg.Settings.Driver()
			if !filepath.IsAbs(driverPath) {
				driverPath = filepath.Join(codeDir, driverPath)
			}
			r.logger.Warn("driver script not found", "target", cfg.Key, "driver", driverPath)
		}
		target := Target{
			Token:       token,
			ModuleName:  moduleName,
			ConfigName:  cfg.Name,
			ModuleDir:   moduleDir,
			CodeDir:     codeDir,
			DriverPath:  driverPath,
			WorkDirName: cfg.Key,
			ConfigKey:   cfg.Key,
			Settings:    cfg.Settings,
			Specialized: specialized,
		}
		if specialized {
			target.Family = mdtf.ExtractMetadata(cfg.Settings, moduleDir)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// SplitToken validates a run token and splits it into module and
// configuration names. Tokens may only contain lowercase letters, digits,
// underscores and a single "/" separator.
func SplitToken(token string) (string, string, error) {
	invalid := func() (string, string, error) {
		return "", "", cmecerr.New(cmecerr.KindInvalidModuleName, "Invalid module name %q", token)
	}
	if token == "" || strings.Count(token, "/") > 1 {
		return invalid()
	}
	for _, ch := range token {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '_', ch == '/':
		default:
			return invalid()
		}
	}
	moduleName, configName, found := strings.Cut(token, "/")
	if moduleName == "" || (found && configName == "") {
		return invalid()
	}
	return moduleName, configName, nil
}
