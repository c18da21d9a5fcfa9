package results

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const root = "/out"

func touch(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

func read(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func TestReadWithoutSidecarStartsEmpty(t *testing.T) {
	idx := New(root, WithFs(afero.NewMemMapFs()))
	require.NoError(t, idx.Read())
	require.Empty(t, idx.Pages())
}

func TestWriteRendersSortedLinks(t *testing.T) {
	fsys := afero.NewMemMapFs()
	touch(t, fsys, "/out/zeta/index.html", "z")
	touch(t, fsys, "/out/demo/index.html", "d")
	idx := New(root, WithFs(fsys))
	require.NoError(t, idx.Read())
	idx.Link("zeta", "zeta/index.html")
	idx.Link("demo", "demo/index.html")
	require.NoError(t, idx.Write())

	page := read(t, fsys, "/out/index.html")
	require.Contains(t, page, "<title>CMEC Driver Results</title>")
	demo := strings.Index(page, `<br><a href="demo/index.html">demo</a>`)
	zeta := strings.Index(page, `<br><a href="zeta/index.html">zeta</a>`)
	require.True(t, demo > 0 && zeta > demo)
	require.JSONEq(t, `{"demo": "demo/index.html", "zeta": "zeta/index.html"}`, read(t, fsys, "/out/.html_pages"))
}

func TestWritePrunesMissingPages(t *testing.T) {
	fsys := afero.NewMemMapFs()
	touch(t, fsys, "/out/.html_pages", `{"gone": "gone/index.html", "kept": "kept/kept.html"}`)
	touch(t, fsys, "/out/kept/kept.html", "k")

	idx := New(root, WithFs(fsys))
	require.NoError(t, idx.Read())
	require.Len(t, idx.Pages(), 2)
	require.NoError(t, idx.Write())

	require.Equal(t, map[string]string{"kept": "kept/kept.html"}, idx.Pages())
	require.NotContains(t, read(t, fsys, "/out/index.html"), "gone")
	require.JSONEq(t, `{"kept": "kept/kept.html"}`, read(t, fsys, "/out/.html_pages"))
}

func TestLinkReplacesEarlierPage(t *testing.T) {
	idx := New(root, WithFs(afero.NewMemMapFs()))
	idx.Link("demo", "demo/index.html")
	idx.Link("demo", "demo/other.html")
	require.Equal(t, "demo/other.html", idx.Pages()["demo"])
}

func TestReadRejectsCorruptSidecar(t *testing.T) {
	fsys := afero.NewMemMapFs()
	touch(t, fsys, "/out/.html_pages", `{not json`)
	require.Error(t, New(root, WithFs(fsys)).Read())
}

func TestWriteDefaultPage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	touch(t, fsys, "/out/demo/plot.png", "png")
	touch(t, fsys, "/out/demo/table.csv", "a,b")
	touch(t, fsys, "/out/demo/cmec_run.bash", "#!/bin/bash")
	touch(t, fsys, "/out/demo/chart", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	require.NoError(t, WriteDefaultPage(fsys, "/out/demo", "demo", "index.html", "cmec_run.bash"))
	page := read(t, fsys, "/out/demo/index.html")
	require.Contains(t, page, "<h1>demo Results</h1>")
	require.Contains(t, page, `<img src="plot.png" width="647"`)
	require.Contains(t, page, `<img src="chart" width="647"`)
	require.Contains(t, page, `<br><a href="table.csv" target="_blank">table.csv</a>`)
	require.NotContains(t, page, "cmec_run.bash")
	require.NotContains(t, page, `href="index.html"`)
}
