package results

import (
	"fmt"
	"html"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".bmp": true, ".gif": true,
}

// WriteDefaultPage lists the contents of dir in dir/indexName. Images are
// shown inline and everything else is linked. Names in skip are left out.
func WriteDefaultPage(fsys afero.Fs, dir, title, indexName string, skip ...string) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("results: list %s: %w", dir, err)
	}
	hidden := map[string]bool{indexName: true}
	for _, name := range skip {
		hidden[name] = true
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !hidden[entry.Name()] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<html>\n")
	b.WriteString("<head><title>" + Title + "</title></head>\n")
	b.WriteString("<body>\n")
	fmt.Fprintf(&b, "<h1>%s Results</h1>\n", html.EscapeString(title))
	for _, name := range names {
		ref := html.EscapeString(name)
		if isImage(fsys, filepath.Join(dir, name)) {
			fmt.Fprintf(&b, "<p><a href=\"%[1]s\" target=\"_blank\"><img src=\"%[1]s\" width=\"647\" alt=\"%[1]s\"></a></p>\n", ref)
			continue
		}
		fmt.Fprintf(&b, "<br><a href=\"%[1]s\" target=\"_blank\">%[1]s</a>\n", ref)
	}
	b.WriteString("</body>\n</html>\n")
	if err := afero.WriteFile(fsys, filepath.Join(dir, indexName), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", indexName, err)
	}
	return nil
}

// isImage trusts well-known extensions and sniffs everything else.
func isImage(fsys afero.Fs, path string) bool {
	if imageExts[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	if filepath.Ext(path) != "" {
		return false
	}
	f, err := fsys.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mtype.String(), "image/")
}
