package mdtf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kingrea/cmec-driver/internal/descriptor"
	"github.com/kingrea/cmec-driver/internal/logging"
)

const (
	precipRate = "precipitation_rate"
	precipFlux = "precipitation_flux"
)

// Fieldlist is a naming convention table from
// <root>/data/fieldlist_<convention>.jsonc. A missing table yields a
// Fieldlist with no convention, under which variable names are used as is.
type Fieldlist struct {
	path      string
	doc       gjson.Result
	levCoord  string
	envVars   []EnvVar
	available bool
	logger    *logging.Logger
}

// FieldlistPath returns the convention table location under an MDTF root.
func FieldlistPath(root, convention string) string {
	return filepath.Join(root, "data", "fieldlist_"+convention+".jsonc")
}

// LoadFieldlist reads the table for convention. An absent file is not an
// error; check IsConvention.
func LoadFieldlist(root, convention string, logger *logging.Logger) (*Fieldlist, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	path := FieldlistPath(root, convention)
	f := &Fieldlist{path: path, levCoord: "lev", logger: logger}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Fieldlist not found; setting convention to None", "path", path)
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mdtf: read fieldlist %s: %w", path, err)
	}
	standard, err := descriptor.StandardizeJSONC(data)
	if err != nil || !gjson.ValidBytes(standard) {
		return nil, fmt.Errorf("mdtf: parse fieldlist %s: invalid JSONC", path)
	}
	f.doc = gjson.ParseBytes(standard)
	f.available = true
	coords := f.doc.Get("coords")
	switch {
	case coords.Get("plev").Exists():
		f.levCoord = "plev"
	case coords.Get("lev").Exists():
		f.levCoord = "lev"
	}
	f.doc.Get("env_vars").ForEach(func(key, value gjson.Result) bool {
		f.envVars = append(f.envVars, EnvVar{Key: key.String(), Value: value.String()})
		return true
	})
	return f, nil
}

// Path returns the table location.
func (f *Fieldlist) Path() string { return f.path }

// IsConvention reports whether a table was loaded.
func (f *Fieldlist) IsConvention() bool { return f != nil && f.available }

// EnvVars returns the table's env_vars block in document order.
func (f *Fieldlist) EnvVars() []EnvVar {
	if f == nil {
		return nil
	}
	return append([]EnvVar(nil), f.envVars...)
}

// Lookup returns the convention's name for a standard name. Variables with
// fewer than four dimensions use the scalar coordinate template of the
// table's level coordinate. When precipitation rate or flux is missing the
// other one is substituted without any unit conversion.
func (f *Fieldlist) Lookup(standardName string, ndims int) (string, bool) {
	found := f.lookup(standardName, ndims, true)
	return found, found != ""
}

func (f *Fieldlist) lookup(standardName string, ndims int, warn bool) string {
	if !f.IsConvention() {
		return ""
	}
	if found := f.scan(standardName, ndims); found != "" {
		return found
	}
	var substitute string
	switch standardName {
	case precipRate:
		substitute = precipFlux
	case precipFlux:
		substitute = precipRate
	default:
		return ""
	}
	if warn {
		f.logger.Warn(fmt.Sprintf("POD calls for %s; %s variable will be used in its place WITH NO UNITS CONVERSION",
			standardName, substitute))
	}
	return f.scan(substitute, ndims)
}

// scan walks variables in document order; the last match wins.
func (f *Fieldlist) scan(standardName string, ndims int) string {
	found := ""
	f.doc.Get("variables").ForEach(func(key, value gjson.Result) bool {
		if value.Get("standard_name").String() != standardName {
			return true
		}
		templates := value.Get("scalar_coord_templates")
		if templates.Exists() && ndims != 4 {
			found = strings.ReplaceAll(templates.Get(gjson.Escape(f.levCoord)).String(), "{value}", "")
		} else {
			found = key.String()
		}
		return true
	})
	return found
}
