// internal/config/config.go
//
// This package handles driver configuration and the per-user ~/.cmec
// directory. Configuration is layered: built-in defaults, then the optional
// ~/.cmec/driver.yaml file, then CMEC_DRIVER_* environment variables, then
// command-line overrides.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDirName is the per-user directory holding cmec.json and driver.yaml
	ConfigDirName = ".cmec"

	// LibraryFileName is the per-user library file kept in the home directory
	LibraryFileName = ".cmeclibrary"

	// RunConfigFileName holds user parameter overrides per configuration
	RunConfigFileName = "cmec.json"

	// SettingsFileName is the optional YAML file for driver settings
	SettingsFileName = "driver.yaml"

	// EnvPrefix marks environment variables read as driver settings
	EnvPrefix = "CMEC_DRIVER_"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// LogConfig controls console and file logging.
type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
	JSON  bool   `koanf:"json" yaml:"json"`
	File  string `koanf:"file" yaml:"file,omitempty"`
}

// Config holds the runtime configuration for the driver.
type Config struct {
	// HomeDir anchors the default file locations and relative paths
	HomeDir string `koanf:"-" yaml:"-"`

	// LibraryPath is the JSON library mapping module names to directories
	LibraryPath string `koanf:"library_path" yaml:"library_path"`

	// ConfigFile is the run configuration (cmec.json); its directory is
	// exported to modules as CMEC_CONFIG_DIR
	ConfigFile string `koanf:"config_file" yaml:"config_file"`

	Log LogConfig `koanf:"log" yaml:"log"`
}

// Overrides carries values set on the command line. Empty fields are ignored.
type Overrides struct {
	LibraryPath string
	ConfigFile  string
	LogLevel    string
	LogJSON     bool
	LogFile     string
}

// Default returns the configuration used when nothing else is set.
func Default(homeDir string) Config {
	return Config{
		HomeDir:     homeDir,
		LibraryPath: filepath.Join(homeDir, LibraryFileName),
		ConfigFile:  filepath.Join(homeDir, ConfigDirName, RunConfigFileName),
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration for homeDir. An empty homeDir resolves to the
// current user's home directory.
func Load(homeDir string, overrides Overrides) (*Config, error) {
	if strings.TrimSpace(homeDir) == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home directory: %w", err)
		}
		homeDir = dir
	}
	k := koanf.New(".")
	defaults := Default(homeDir)
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	settingsPath := filepath.Join(homeDir, ConfigDirName, SettingsFileName)
	fileValues, err := readSettingsFile(settingsPath)
	if err != nil {
		return nil, err
	}
	if len(fileValues) > 0 {
		if err := k.Load(rawMap(fileValues), nil); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", settingsPath, err)
		}
	}
	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if flagValues := overrides.values(); len(flagValues) > 0 {
		if err := k.Load(rawMap(flagValues), nil); err != nil {
			return nil, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	cfg := Config{HomeDir: homeDir}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.HomeDir = homeDir
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// InitConfigDir creates the directory holding the run configuration file.
func (c *Config) InitConfigDir() error {
	if err := os.MkdirAll(c.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", c.ConfigDir(), err)
	}
	return nil
}

// ConfigDir returns the directory of the run configuration file
func (c *Config) ConfigDir() string {
	return filepath.Dir(c.ConfigFile)
}

// LockPath returns the advisory lock file guarding library mutations
func (c *Config) LockPath() string {
	return c.LibraryPath + ".lock"
}

// SettingsPath returns the location of the optional driver.yaml file
func (c *Config) SettingsPath() string {
	return filepath.Join(c.HomeDir, ConfigDirName, SettingsFileName)
}

func (c *Config) normalize() {
	c.LibraryPath = resolvePath(c.HomeDir, c.LibraryPath)
	c.ConfigFile = resolvePath(c.HomeDir, c.ConfigFile)
	c.Log.File = resolvePath(c.HomeDir, c.Log.File)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.LibraryPath == "" {
		return fmt.Errorf("library_path is required")
	}
	if c.ConfigFile == "" {
		return fmt.Errorf("config_file is required")
	}
	if err := validator.New().Var(c.Log.Level, "oneof="+strings.Join(validLogLevels, " ")); err != nil {
		return fmt.Errorf("log.level must be one of %s", strings.Join(validLogLevels, ", "))
	}
	return nil
}

func (o Overrides) values() map[string]any {
	values := map[string]any{}
	if v := strings.TrimSpace(o.LibraryPath); v != "" {
		values["library_path"] = v
	}
	if v := strings.TrimSpace(o.ConfigFile); v != "" {
		values["config_file"] = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		values["log.level"] = v
	}
	if o.LogJSON {
		values["log.json"] = true
	}
	if v := strings.TrimSpace(o.LogFile); v != "" {
		values["log.file"] = v
	}
	return values
}

// transformEnvKey maps CMEC_DRIVER_LOG_LEVEL to log.level and
// CMEC_DRIVER_LIBRARY_PATH to library_path.
func transformEnvKey(key, value string) (string, any) {
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if name == "" {
		return "", nil
	}
	if rest, ok := strings.CutPrefix(name, "log_"); ok {
		return "log." + rest, value
	}
	return name, value
}

func readSettingsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return flatten("", raw), nil
}

// flatten turns nested YAML maps into dotted koanf keys.
func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if trimmed == "~" {
		return filepath.Clean(base)
	}
	if rest, ok := strings.CutPrefix(trimmed, "~/"); ok {
		return filepath.Clean(filepath.Join(base, rest))
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

// rawMap is a koanf.Provider adapter for already-decoded values.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return unflatten(r), nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("config: ReadBytes not implemented")
}

func unflatten(in map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range in {
		parts := strings.Split(key, ".")
		cur := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = value
	}
	return out
}
