package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
)

// Settings is a single-configuration descriptor (settings.json or
// settings.jsonc). The file may contain comments and trailing commas.
type Settings struct {
	path     string
	raw      []byte
	doc      map[string]any
	name     string
	longName string
	driver   string
}

// ReadSettings loads and validates a settings file.
func ReadSettings(path string) (*Settings, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, cmecerr.Wrap(cmecerr.KindMalformedSettings, err, "Could not open CMEC settings file %s", path)
	}
	if info.IsDir() {
		return nil, cmecerr.New(cmecerr.KindMalformedSettings, "CMEC settings file %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: read %s: %w", path, err)
	}
	return ParseSettings(path, data)
}

// ParseSettings validates settings content that was read from path.
func ParseSettings(path string, data []byte) (*Settings, error) {
	raw, err := StandardizeJSONC(data)
	if err != nil {
		return nil, cmecerr.Wrap(cmecerr.KindMalformedSettings, err, "Malformed CMEC settings file %s", path)
	}
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, cmecerr.Wrap(cmecerr.KindMalformedSettings, err, "Malformed CMEC settings file %s", path)
	}
	block, ok := doc["settings"].(map[string]any)
	if !ok {
		return nil, cmecerr.New(cmecerr.KindMalformedSettings,
			"Malformed CMEC settings file %s: missing key 'settings'", path)
	}
	driver, ok := block["driver"].(string)
	if !ok || strings.TrimSpace(driver) == "" {
		return nil, cmecerr.New(cmecerr.KindMalformedSettings,
			"Malformed CMEC settings file %s: missing key 'settings': 'driver'", path)
	}
	fallback := driverStem(driver)
	s := &Settings{
		path:     filepath.Clean(path),
		raw:      raw,
		doc:      doc,
		driver:   driver,
		name:     stringOr(block["name"], fallback),
		longName: stringOr(block["long_name"], fallback),
	}
	return s, nil
}

// Kind implements Descriptor.
func (s *Settings) Kind() Kind { return KindSettings }

// Path returns the settings file location.
func (s *Settings) Path() string { return s.path }

// Name returns the configuration name.
func (s *Settings) Name() string { return s.name }

// LongName returns the human readable name.
func (s *Settings) LongName() string { return s.longName }

// Driver returns the driver script as written in the file.
func (s *Settings) Driver() string { return s.driver }

// Configurations implements Descriptor.
func (s *Settings) Configurations() []Configuration {
	return []Configuration{{Name: s.name, Key: s.name, Settings: s}}
}

// DriverPath locates the driver script. Relative drivers are looked up next
// to the settings file first, then under moduleDir. It returns "" when the
// script does not exist.
func (s *Settings) DriverPath(moduleDir string) string {
	if filepath.IsAbs(s.driver) {
		if exists(s.driver) {
			return filepath.Clean(s.driver)
		}
		return ""
	}
	candidates := []string{filepath.Join(filepath.Dir(s.path), s.driver)}
	if moduleDir != "" {
		candidates = append(candidates, filepath.Join(moduleDir, s.driver))
	}
	for _, candidate := range candidates {
		if exists(candidate) {
			return candidate
		}
	}
	return ""
}

// Setting returns a top-level block as a map. Absent or non-object blocks
// yield an empty map.
func (s *Settings) Setting(key string) map[string]any {
	if block, ok := s.doc[key].(map[string]any); ok {
		return block
	}
	return map[string]any{}
}

// Block returns a top-level value for ordered traversal.
func (s *Settings) Block(key string) gjson.Result {
	return gjson.GetBytes(s.raw, gjson.Escape(key))
}

// DefaultParameters returns the default_parameters block when declared.
func (s *Settings) DefaultParameters() (map[string]any, bool) {
	block, ok := s.doc["default_parameters"].(map[string]any)
	if !ok {
		return nil, false
	}
	clone := make(map[string]any, len(block))
	for key, value := range block {
		clone[key] = value
	}
	return clone, true
}

// DeclaresFamily reports whether the descriptor carries the MDTF POD blocks:
// a variable list and runtime requirements.
func (s *Settings) DeclaresFamily() bool {
	if _, ok := s.doc["varlist"].(map[string]any); !ok {
		return false
	}
	_, ok := s.Setting("settings")["runtime_requirements"]
	return ok
}

func driverStem(driver string) string {
	base := filepath.Base(driver)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
