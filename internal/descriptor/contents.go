package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
)

// Contents is a multi-configuration descriptor (contents.json). Unlike
// settings files it is parsed as strict JSON.
type Contents struct {
	path     string
	name     string
	longName string
	configs  []*Settings
}

type contentsFile struct {
	Module   *contentsModule `json:"module"`
	Contents json.RawMessage `json:"contents"`
}

type contentsModule struct {
	Name     *string `json:"name"`
	LongName *string `json:"long_name"`
}

// ReadContents loads moduleDir/contents.json and every settings file it lists.
// Entries that are not strings are reported and skipped.
func ReadContents(moduleDir string, opts ...Option) (*Contents, error) {
	o := buildOptions(opts)
	path := filepath.Join(moduleDir, ContentsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: read %s: %w", path, err)
	}
	var file contentsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, cmecerr.Wrap(cmecerr.KindMalformedTOC, err, "Malformed CMEC contents file %s", path)
	}
	if file.Module == nil {
		return nil, cmecerr.New(cmecerr.KindMalformedTOC, "Malformed CMEC contents file %s: missing key module", path)
	}
	if file.Contents == nil {
		return nil, cmecerr.New(cmecerr.KindMalformedTOC, "Malformed CMEC contents file %s: missing key contents", path)
	}
	if file.Module.Name == nil {
		return nil, cmecerr.New(cmecerr.KindMalformedTOC, "Malformed CMEC contents file %s: missing key module:name", path)
	}
	if file.Module.LongName == nil {
		return nil, cmecerr.New(cmecerr.KindMalformedTOC, "Malformed CMEC contents file %s: missing key module:long_name", path)
	}

	toc := &Contents{
		path:     filepath.Clean(path),
		name:     *file.Module.Name,
		longName: *file.Module.LongName,
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(file.Contents, &entries); err != nil {
		o.logger.Warn("Malformed CMEC contents file: 'contents' is not of type list", "path", path)
		return toc, nil
	}
	seen := make(map[string]string, len(entries))
	for idx, entry := range entries {
		var rel string
		if err := json.Unmarshal(entry, &rel); err != nil {
			o.logger.Warn("Malformed CMEC contents file: an entry of the 'contents' array is not of type string",
				"path", path, "index", idx)
			continue
		}
		settings, err := ReadSettings(filepath.Join(moduleDir, rel))
		if err != nil {
			return nil, err
		}
		if previous, exists := seen[settings.Name()]; exists {
			o.logger.Warn("Repeated configuration name", "module", toc.name,
				"configuration", settings.Name(), "kept", previous, "skipped", rel)
			continue
		}
		seen[settings.Name()] = rel
		toc.configs = append(toc.configs, settings)
	}
	return toc, nil
}

// Kind implements Descriptor.
func (c *Contents) Kind() Kind { return KindContents }

// Path returns the contents file location.
func (c *Contents) Path() string { return c.path }

// Name returns the module name.
func (c *Contents) Name() string { return c.name }

// LongName returns the module long name.
func (c *Contents) LongName() string { return c.longName }

// Size returns the number of configurations.
func (c *Contents) Size() int { return len(c.configs) }

// Find returns the settings of a named configuration.
func (c *Contents) Find(name string) (*Settings, bool) {
	for _, cfg := range c.configs {
		if cfg.Name() == name {
			return cfg, true
		}
	}
	return nil, false
}

// Configurations implements Descriptor, preserving contents order.
func (c *Contents) Configurations() []Configuration {
	out := make([]Configuration, 0, len(c.configs))
	for _, cfg := range c.configs {
		out = append(out, Configuration{
			Name:     cfg.Name(),
			Key:      c.name + "/" + cfg.Name(),
			Settings: cfg,
		})
	}
	return out
}
