// Package results maintains the top-level index.html of an output directory.
// Every run links the pages its targets produced; pages that disappeared
// since an earlier run are pruned when the index is written.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	// IndexFileName is the rendered navigation page.
	IndexFileName = "index.html"
	// SidecarFileName stores the name → page mapping between runs.
	SidecarFileName = ".html_pages"
	// Title heads the navigation page.
	Title = "CMEC Driver Results"
)

// Index is the results index of one output root.
type Index struct {
	root  string
	fs    afero.Fs
	pages map[string]string
}

// Option customizes an Index.
type Option func(*Index)

// WithFs swaps the filesystem, mainly for tests.
func WithFs(fsys afero.Fs) Option {
	return func(i *Index) {
		if fsys != nil {
			i.fs = fsys
		}
	}
}

// New returns an empty index rooted at root.
func New(root string, opts ...Option) *Index {
	idx := &Index{root: root, fs: afero.NewOsFs(), pages: map[string]string{}}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Root returns the output root.
func (i *Index) Root() string { return i.root }

// Fs returns the filesystem the index writes to.
func (i *Index) Fs() afero.Fs { return i.fs }

// Read loads the sidecar when present; otherwise the index starts empty.
func (i *Index) Read() error {
	i.pages = map[string]string{}
	data, err := afero.ReadFile(i.fs, filepath.Join(i.root, SidecarFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("results: read %s: %w", SidecarFileName, err)
	}
	if err := json.Unmarshal(data, &i.pages); err != nil {
		return fmt.Errorf("results: parse %s: %w", SidecarFileName, err)
	}
	if i.pages == nil {
		i.pages = map[string]string{}
	}
	return nil
}

// Link records the page for a working directory, replacing any earlier one.
// page is relative to the output root.
func (i *Index) Link(name, page string) {
	i.pages[name] = filepath.ToSlash(page)
}

// Pages returns a copy of the current mapping.
func (i *Index) Pages() map[string]string {
	out := make(map[string]string, len(i.pages))
	for name, page := range i.pages {
		out[name] = page
	}
	return out
}

// Write drops entries whose page no longer exists, then renders index.html
// and persists the pruned sidecar.
func (i *Index) Write() error {
	names := make([]string, 0, len(i.pages))
	for name, page := range i.pages {
		if ok, _ := afero.Exists(i.fs, filepath.Join(i.root, filepath.FromSlash(page))); !ok {
			delete(i.pages, name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{
		"<html>",
		"<head><title>" + Title + "</title></head>",
		"<h1>" + Title + "</h1>",
	}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf(`<br><a href="%s">%s</a>`,
			html.EscapeString(path.Clean(i.pages[name])), html.EscapeString(name)))
	}
	lines = append(lines, "</html>")
	if err := afero.WriteFile(i.fs, filepath.Join(i.root, IndexFileName), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", IndexFileName, err)
	}

	data, err := json.MarshalIndent(i.pages, "", "  ")
	if err != nil {
		return fmt.Errorf("results: encode %s: %w", SidecarFileName, err)
	}
	if err := afero.WriteFile(i.fs, filepath.Join(i.root, SidecarFileName), data, 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", SidecarFileName, err)
	}
	return nil
}
