// Package library owns the per-user module library: the persistent mapping of
// module names to module directories plus the two optional conda settings.
// The file is re-read in full on every invocation and rewritten in full on
// every mutation.
package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
)

// FormatVersion is written into newly created library files.
const FormatVersion = "1.1.6"

// FamilyMDTF tags modules that follow the MDTF POD environment contract.
const FamilyMDTF = "mdtf"

const (
	keyModules    = "modules"
	keyDriver     = "cmec-driver"
	keyVersion    = "version"
	keyCondaRoot  = "conda_source"
	keyEnvRoot    = "conda_env_root"
	keyFamilies   = "module_families"
	familyDirName = "diagnostics"
	familyRootDir = "MDTF-diagnostics"
)

var requiredKeys = []string{keyDriver, keyVersion, keyModules}

// Library is the in-memory view of the library file.
type Library struct {
	path     string
	doc      map[string]json.RawMessage
	modules  map[string]string
	families map[string]string
}

// New returns an empty library bound to path. Call Read to load it.
func New(path string) *Library {
	lib := &Library{path: path}
	lib.clear()
	return lib
}

// Path returns the backing file.
func (l *Library) Path() string {
	return l.path
}

func (l *Library) clear() {
	version, _ := json.Marshal(FormatVersion)
	l.doc = map[string]json.RawMessage{
		keyModules: json.RawMessage(`{}`),
		keyDriver:  json.RawMessage(`{}`),
		keyVersion: version,
	}
	l.modules = map[string]string{}
	l.families = map[string]string{}
}

// Read loads the library, creating an empty file first when none exists.
func (l *Library) Read() error {
	l.clear()
	if _, err := os.Stat(l.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("library: stat %s: %w", l.path, err)
		}
		if err := l.Write(); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("library: read %s: %w", l.path, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return cmecerr.Wrap(cmecerr.KindMalformedLibrary, err, "Malformed CMEC library file %s", l.path)
	}
	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			return cmecerr.New(cmecerr.KindMalformedLibrary, "Malformed CMEC library file missing key %s", key)
		}
	}
	modules, err := decodeModules(doc[keyModules])
	if err != nil {
		return err
	}
	families := map[string]string{}
	if raw, ok := doc[keyFamilies]; ok {
		if err := json.Unmarshal(raw, &families); err != nil {
			return cmecerr.Wrap(cmecerr.KindMalformedLibrary, err, "Malformed CMEC library file: '%s' is not a map of strings", keyFamilies)
		}
	}
	l.doc = doc
	l.modules = modules
	l.families = families
	return nil
}

// decodeModules walks the modules object token by token so repeated names are
// detected instead of being collapsed by map decoding.
func decodeModules(raw json.RawMessage) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, cmecerr.Wrap(cmecerr.KindMalformedLibrary, err, "Malformed CMEC library file: 'modules' is unreadable")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, cmecerr.New(cmecerr.KindMalformedLibrary, "Malformed CMEC library file: 'modules' is not an object")
	}
	modules := map[string]string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, cmecerr.Wrap(cmecerr.KindMalformedLibrary, err, "Malformed CMEC library file: 'modules' is unreadable")
		}
		name, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, cmecerr.Wrap(cmecerr.KindMalformedLibrary, err, "Malformed CMEC library file: 'modules' is unreadable")
		}
		var path string
		if err := json.Unmarshal(value, &path); err != nil {
			return nil, cmecerr.New(cmecerr.KindMalformedLibrary, "Malformed CMEC library file: an entry of the 'modules' array is not of type string")
		}
		if _, exists := modules[name]; exists {
			return nil, cmecerr.New(cmecerr.KindMalformedLibrary, "Malformed CMEC library file: Repeated module name %s", name)
		}
		modules[name] = path
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, cmecerr.Wrap(cmecerr.KindMalformedLibrary, err, "Malformed CMEC library file: 'modules' is unreadable")
	}
	return modules, nil
}

// Write persists the full in-memory state, overwriting the file.
func (l *Library) Write() error {
	doc := make(map[string]json.RawMessage, len(l.doc)+1)
	for key, value := range l.doc {
		doc[key] = value
	}
	modules, err := json.Marshal(l.modules)
	if err != nil {
		return fmt.Errorf("library: encode modules: %w", err)
	}
	doc[keyModules] = modules
	if len(l.families) > 0 {
		families, err := json.Marshal(l.families)
		if err != nil {
			return fmt.Errorf("library: encode families: %w", err)
		}
		doc[keyFamilies] = families
	} else {
		delete(doc, keyFamilies)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("library: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("library: ensure dir: %w", err)
	}
	if err := os.WriteFile(l.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("library: write %s: %w", l.path, err)
	}
	return nil
}

// Insert records a module. Existing names are never overwritten; the user has
// to unregister first.
func (l *Library) Insert(name, path string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("library: module name is required")
	}
	if _, exists := l.modules[name]; exists {
		return cmecerr.New(cmecerr.KindDuplicateModule, "Module %s already exists in library; if path has changed first run 'unregister'", name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("library: resolve %s: %w", path, err)
	}
	l.modules[name] = abs
	return nil
}

// Remove deletes a module and its family flag.
func (l *Library) Remove(name string) error {
	if _, exists := l.modules[name]; !exists {
		return cmecerr.New(cmecerr.KindModuleNotFound, "Module %s not found in library", name)
	}
	delete(l.modules, name)
	delete(l.families, name)
	return nil
}

// Find returns the module directory or "" when the name is unknown.
func (l *Library) Find(name string) string {
	return l.modules[name]
}

// Size returns the number of registered modules.
func (l *Library) Size() int {
	return len(l.modules)
}

// Names returns the registered module names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetFamily stores the family flag for a registered module. An empty family
// clears it.
func (l *Library) SetFamily(name, family string) error {
	if _, exists := l.modules[name]; !exists {
		return cmecerr.New(cmecerr.KindModuleNotFound, "Module %s not found in library", name)
	}
	family = strings.TrimSpace(family)
	if family == "" {
		delete(l.families, name)
		return nil
	}
	l.families[name] = family
	return nil
}

// Family returns the stored family flag for name.
func (l *Library) Family(name string) string {
	return l.families[name]
}

// IsSpecialized reports whether name is registered as an MDTF POD.
func (l *Library) IsSpecialized(name string) bool {
	return l.families[name] == FamilyMDTF
}

// CondaRoot returns the conda source script, if set.
func (l *Library) CondaRoot() (string, bool) {
	return l.optionalString(keyCondaRoot)
}

// SetCondaRoot stores the conda source script.
func (l *Library) SetCondaRoot(path string) {
	l.setOptionalString(keyCondaRoot, path)
}

// ClearCondaRoot removes the conda source script.
func (l *Library) ClearCondaRoot() {
	delete(l.doc, keyCondaRoot)
}

// EnvRoot returns the conda environment directory, if set.
func (l *Library) EnvRoot() (string, bool) {
	return l.optionalString(keyEnvRoot)
}

// SetEnvRoot stores the conda environment directory.
func (l *Library) SetEnvRoot(path string) {
	l.setOptionalString(keyEnvRoot, path)
}

// ClearEnvRoot removes the conda environment directory.
func (l *Library) ClearEnvRoot() {
	delete(l.doc, keyEnvRoot)
}

func (l *Library) optionalString(key string) (string, bool) {
	raw, ok := l.doc[key]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

func (l *Library) setOptionalString(key, value string) {
	encoded, _ := json.Marshal(value)
	l.doc[key] = encoded
}

// MatchesFamilyLayout reports whether dir sits in the MDTF-diagnostics
// checkout layout (.../MDTF-diagnostics/diagnostics/<pod>).
func MatchesFamilyLayout(dir string) bool {
	resolved := resolvePath(dir)
	parent := filepath.Dir(resolved)
	grandparent := filepath.Dir(parent)
	return strings.Contains(filepath.Base(parent), familyDirName) &&
		strings.Contains(filepath.Base(grandparent), familyRootDir)
}

// FamilyRoot returns the MDTF-diagnostics checkout enclosing a POD directory.
func FamilyRoot(dir string) string {
	return filepath.Dir(filepath.Dir(resolvePath(dir)))
}

func resolvePath(dir string) string {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
