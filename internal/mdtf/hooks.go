package mdtf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/otiai10/copy"

	"github.com/kingrea/cmec-driver/internal/logging"
	"github.com/kingrea/cmec-driver/internal/runscript"
)

// WorkSubdirs are created inside every POD working directory.
var WorkSubdirs = []string{
	filepath.Join("model", "netcdf"),
	filepath.Join("model", "PS"),
	filepath.Join("obs", "netcdf"),
	filepath.Join("obs", "PS"),
}

// BannerName is copied once into the output root.
const BannerName = "mdtf_diag_banner.png"

var (
	vectorExts = []string{".ps", ".PS", ".eps", ".EPS", ".pdf", ".PDF"}
	bitmapExts = []string{".png", ".gif", ".jpg", ".jpeg"}
)

// Converter runs one shell command line for figure conversion.
type Converter func(ctx context.Context, command string) error

// PostProcessor implements the html and figure handling PODs expect from
// the MDTF framework.
type PostProcessor struct {
	CondaSource string
	EnvRoot     string
	Convert     Converter
	Logger      *logging.Logger
}

func (p *PostProcessor) logger() *logging.Logger {
	if p.Logger == nil {
		return logging.Discard()
	}
	return p.Logger
}

// IndexName is the POD's html page inside its working directory.
func IndexName(pod Pod) string {
	return pod.Metadata.AltName + ".html"
}

// CopyTemplate fills the POD's html template into its working directory and
// copies any other html files next to it. It returns the page name.
func (p *PostProcessor) CopyTemplate(pod Pod) (string, error) {
	index := IndexName(pod)
	src := filepath.Join(pod.Home, index)
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger().Warn("POD html template not found", "path", src)
		return index, nil
	}
	if err != nil {
		return "", fmt.Errorf("mdtf: read template %s: %w", src, err)
	}
	values := make(map[string]string, len(pod.Settings)+len(pod.Metadata.EnvVars))
	for key, value := range pod.Settings {
		values[key] = FormatValue(value)
	}
	for _, env := range pod.Metadata.EnvVars {
		values[env.Key] = env.Value
	}
	page := string(data)
	for _, key := range sortedStringKeys(values) {
		page = strings.ReplaceAll(page, "{{"+key+"}}", values[key])
	}
	if err := os.WriteFile(filepath.Join(pod.WorkDir, index), []byte(page), 0o644); err != nil {
		return "", fmt.Errorf("mdtf: write %s: %w", index, err)
	}

	var siblings []string
	home := os.DirFS(pod.Home)
	for _, pattern := range []string{"*html", "*/*html"} {
		matches, err := doublestar.Glob(home, pattern)
		if err != nil {
			return "", fmt.Errorf("mdtf: list html files in %s: %w", pod.Home, err)
		}
		siblings = append(siblings, matches...)
	}
	for _, rel := range siblings {
		if rel == index {
			continue
		}
		item := filepath.Join(pod.Home, filepath.FromSlash(rel))
		if info, err := os.Stat(item); err != nil || info.IsDir() {
			continue
		}
		if err := copy.Copy(item, filepath.Join(pod.WorkDir, filepath.FromSlash(rel))); err != nil {
			return "", fmt.Errorf("mdtf: copy %s: %w", rel, err)
		}
	}
	return index, nil
}

// Finish converts and gathers figures, copies observation figures and the
// banner, then removes intermediate files unless save_ps or save_nc is set.
// Failures are logged; none of them fail the target.
func (p *PostProcessor) Finish(ctx context.Context, pod Pod, fields *Fieldlist) {
	log := p.logger()
	model := filepath.Join(pod.WorkDir, "model")
	ps := filepath.Join(model, "PS")

	p.convertFigures(ctx, ps)
	if err := moveBitmaps(ps, model); err != nil {
		log.Warn("could not move figures", "dir", ps, "err", err)
	}
	if pod.ObsDir != "" {
		if err := copyBitmaps(filepath.Join(pod.ObsDir, pod.Metadata.AltName), filepath.Join(pod.WorkDir, "obs")); err != nil {
			log.Warn("could not copy observation figures", "err", err)
		}
	}
	if err := copyBanner(pod.Metadata.Root, filepath.Dir(pod.WorkDir)); err != nil {
		log.Warn("could not copy MDTF banner", "err", err)
	}
	if !isTruthy(pod.Settings["save_ps"]) {
		log.Debug("deleting postscript images", "dir", ps)
		_ = os.RemoveAll(ps)
	}
	if !isTruthy(pod.Settings["save_nc"]) {
		nc := filepath.Join(model, "netcdf")
		log.Debug("deleting intermediate netCDF files", "dir", nc)
		_ = os.RemoveAll(nc)
	}
	if err := renameFigures(pod.Metadata.Variables, fields, model); err != nil {
		log.Warn("could not rename figures", "dir", model, "err", err)
	}
}

func (p *PostProcessor) convertFigures(ctx context.Context, dir string) {
	log := p.logger()
	inputs := listByExt(dir, vectorExts)
	if len(inputs) == 0 {
		return
	}
	if p.CondaSource == "" || p.EnvRoot == "" {
		log.Warn("conda is not configured; skipping figure conversion", "dir", dir)
		return
	}
	convert := p.Convert
	if convert == nil {
		convert = runBash
	}
	log.Info("Converting figures to png", "count", len(inputs))
	for _, name := range inputs {
		in := filepath.Join(dir, name)
		base := strings.TrimSuffix(in, filepath.Ext(in))
		command := fmt.Sprintf("source %s && conda activate %s && gs -dSAFER -dBATCH -dNOPAUSE -dEPSCrop -r150 "+
			"-sDEVICE=png16m -dTextAlphaBits=4 -dGraphicsAlphaBits=4 -sOutputFile=%s %s",
			runscript.Quote(p.CondaSource),
			runscript.Quote(filepath.Join(p.EnvRoot, BaseEnvironment)),
			runscript.Quote(base+"_MDTF_TEMP_%d.png"),
			runscript.Quote(in))
		if err := convert(ctx, command); err != nil {
			log.Warn("figure conversion failed", "file", in, "err", err)
			continue
		}
		renumberPages(dir, filepath.Base(base))
	}
}

// renumberPages renames gs output: one page becomes <base>.png, several
// become <base>-0.png, <base>-1.png and so on.
func renumberPages(dir, base string) {
	prefix := base + "_MDTF_TEMP_"
	var pages []string
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".png") {
			pages = append(pages, entry.Name())
		}
	}
	if len(pages) == 1 {
		_ = os.Rename(filepath.Join(dir, pages[0]), filepath.Join(dir, base+".png"))
		return
	}
	for i := range pages {
		from := filepath.Join(dir, fmt.Sprintf("%s%d.png", prefix, i+1))
		to := filepath.Join(dir, fmt.Sprintf("%s-%d.png", base, i))
		_ = os.Rename(from, to)
	}
}

func runBash(ctx context.Context, command string) error {
	return exec.CommandContext(ctx, "bash", "-c", command).Run()
}

func moveBitmaps(src, dst string) error {
	for _, name := range listByExt(src, bitmapExts) {
		if err := os.Rename(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyBitmaps(src, dst string) error {
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	for _, name := range listByExt(src, bitmapExts) {
		if err := copy.Copy(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyBanner(root, outputRoot string) error {
	dst := filepath.Join(outputRoot, BannerName)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	src := filepath.Join(root, "src", "html", BannerName)
	if _, err := os.Stat(src); err != nil {
		return err
	}
	return copy.Copy(src, dst)
}

// renameFigures replaces convention variable names in figure file names with
// the POD's own variable names.
func renameFigures(vars []Variable, fields *Fieldlist, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.IsDir() {
			continue
		}
		current := name
		for _, v := range vars {
			if !v.HasStandardName() {
				continue
			}
			convVar := fields.lookup(v.StandardName, v.NDims, false)
			if convVar == "" {
				continue
			}
			convVar += v.ScalarSuffix
			if !strings.Contains(current, "_"+convVar+".png") {
				continue
			}
			renamed := strings.ReplaceAll(current, convVar, v.Name)
			if err := os.Rename(filepath.Join(dir, current), filepath.Join(dir, renamed)); err != nil {
				return err
			}
			current = renamed
		}
	}
	return nil
}

func listByExt(dir string, exts []string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(entry.Name(), ext) {
				out = append(out, entry.Name())
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
