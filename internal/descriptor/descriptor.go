// Package descriptor reads the on-disk metadata of a module. A module carries
// either a single settings file (one configuration) or a contents file listing
// several settings files. Both shapes implement Descriptor so callers can ask
// for the runnable configurations without branching on the shape.
package descriptor

import (
	"os"
	"path/filepath"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/logging"
)

// Marker file names inside a module directory.
const (
	SettingsFileName    = "settings.json"
	SettingsFileNameAlt = "settings.jsonc"
	ContentsFileName    = "contents.json"
)

// Kind identifies which descriptor shape a module directory carries.
type Kind int

const (
	KindNone Kind = iota
	KindSettings
	KindContents
)

func (k Kind) String() string {
	switch k {
	case KindSettings:
		return "settings"
	case KindContents:
		return "contents"
	default:
		return "none"
	}
}

// Descriptor is implemented by *Settings and *Contents.
type Descriptor interface {
	Kind() Kind
	Name() string
	LongName() string
	Configurations() []Configuration
}

// Configuration is one runnable unit of a module.
type Configuration struct {
	// Name is the configuration's own name from its settings file.
	Name string
	// Key addresses the configuration in the run configuration file and names
	// its working directory: "name" for single-configuration modules,
	// "module/name" otherwise.
	Key      string
	Settings *Settings
}

// Option customizes descriptor reading.
type Option func(*readOptions)

type readOptions struct {
	logger *logging.Logger
}

// WithLogger reports skipped contents entries through logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *readOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) readOptions {
	o := readOptions{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SettingsPath returns the settings file inside dir, trying the primary name
// then the alternate extension.
func SettingsPath(dir string) (string, bool) {
	for _, name := range []string{SettingsFileName, SettingsFileNameAlt} {
		path := filepath.Join(dir, name)
		if isFile(path) {
			return path, true
		}
	}
	return "", false
}

// Probe reports which descriptor shape dir carries. A settings file wins when
// both are present.
func Probe(dir string) Kind {
	if _, ok := SettingsPath(dir); ok {
		return KindSettings
	}
	if isFile(filepath.Join(dir, ContentsFileName)) {
		return KindContents
	}
	return KindNone
}

// Open reads whichever descriptor dir carries.
func Open(dir string, opts ...Option) (Descriptor, error) {
	switch Probe(dir) {
	case KindSettings:
		path, _ := SettingsPath(dir)
		return ReadSettings(path)
	case KindContents:
		return ReadContents(dir, opts...)
	default:
		return nil, cmecerr.New(cmecerr.KindNoDescriptor,
			"Module path %s must contain %s or %s", dir, ContentsFileName, SettingsFileName)
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
