// Package runconfig manages cmec.json, the per-user file holding parameter
// overrides keyed by "module" or "module/configuration".
package runconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mohae/deepcopy"
	"github.com/tidwall/pretty"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
)

var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "    ", SortKeys: true}

// Store is the in-memory view of the run configuration file.
type Store struct {
	path     string
	settings map[string]any
}

// New binds a store to path, creating an empty file when none exists.
func New(path string) (*Store, error) {
	s := &Store{path: path, settings: map[string]any{}}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("runconfig: stat %s: %w", path, err)
		}
		if err := s.Write(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Read loads the file. A parseable document whose top level is not an object
// is treated as empty.
func (s *Store) Read() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return cmecerr.Wrap(cmecerr.KindInvalidConfigFile, err, "Could not load %s", s.path)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return cmecerr.Wrap(cmecerr.KindInvalidConfigFile, err, "Could not load %s. File might not be valid JSON", s.path)
	}
	if obj, ok := doc.(map[string]any); ok {
		s.settings = obj
	} else {
		s.settings = map[string]any{}
	}
	return nil
}

// ModuleSettings returns the settings object for key.
func (s *Store) ModuleSettings(key string) (map[string]any, bool) {
	value, ok := s.settings[key]
	if !ok {
		return nil, false
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return map[string]any{}, true
	}
	return obj, true
}

// Has reports whether key has an entry.
func (s *Store) Has(key string) bool {
	_, ok := s.settings[key]
	return ok
}

// Keys returns every key in the store.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.settings))
	for key := range s.settings {
		keys = append(keys, key)
	}
	return keys
}

// Update merges entries into the store; later keys replace earlier ones.
func (s *Store) Update(entries map[string]any) {
	for key, value := range entries {
		s.settings[key] = value
	}
}

// Remove deletes key; absent keys are ignored.
func (s *Store) Remove(key string) {
	delete(s.settings, key)
}

// Snapshot returns a deep copy of the current entries.
func (s *Store) Snapshot() map[string]any {
	clone, _ := deepcopy.Copy(s.settings).(map[string]any)
	if clone == nil {
		clone = map[string]any{}
	}
	return clone
}

// Restore replaces the entries with a copy of snapshot.
func (s *Store) Restore(snapshot map[string]any) {
	restored, _ := deepcopy.Copy(snapshot).(map[string]any)
	if restored == nil {
		restored = map[string]any{}
	}
	s.settings = restored
}

// Write persists the full mapping as indented JSON.
func (s *Store) Write() error {
	data, err := json.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("runconfig: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("runconfig: ensure dir: %w", err)
	}
	if err := os.WriteFile(s.path, pretty.PrettyOptions(data, prettyOptions), 0o644); err != nil {
		return fmt.Errorf("runconfig: write %s: %w", s.path, err)
	}
	return nil
}
