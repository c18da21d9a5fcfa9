package mdtf

import (
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/kingrea/cmec-driver/internal/descriptor"
	"github.com/kingrea/cmec-driver/internal/library"
)

// Variable is one entry of a POD's varlist block.
type Variable struct {
	Name           string
	StandardName   string
	NDims          int
	UseExactName   bool
	ScalarSuffix   string
	Frequency      string
	hasStandardKey bool
}

// HasStandardName reports whether the variable declares a non-null
// standard_name.
func (v Variable) HasStandardName() bool {
	return v.hasStandardKey
}

// EnvVar is an ordered key/value pair exported to the driver script.
type EnvVar struct {
	Key   string
	Value string
}

// Metadata is the POD-specific information pulled from a settings file.
type Metadata struct {
	Variables  []Variable
	Frequency  string
	Runtime    []string
	EnvVars    []EnvVar
	Dimensions []string
	// Root is the MDTF-diagnostics checkout enclosing the POD.
	Root string
	// AltName is the POD directory name, used for observation data and the
	// POD's html page.
	AltName string
	// HybridSigma is the raw USE_HYBRID_SIGMA entry of the varlist, if any.
	HybridSigma any
}

// ExtractMetadata reads the POD blocks of settings for the module at moduleDir.
func ExtractMetadata(settings *descriptor.Settings, moduleDir string) *Metadata {
	meta := &Metadata{
		Root:    library.FamilyRoot(moduleDir),
		AltName: filepath.Base(moduleDir),
	}
	varlist := settings.Block("varlist")
	if flag := varlist.Get(hybridSigmaKey); flag.Exists() {
		meta.HybridSigma = flag.Value()
	}
	varlist.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		meta.Variables = append(meta.Variables, parseVariable(key.String(), value))
		return true
	})
	block := settings.Block("settings")
	runtime := block.Get("runtime_requirements")
	switch {
	case runtime.IsObject():
		runtime.ForEach(func(key, _ gjson.Result) bool {
			meta.Runtime = append(meta.Runtime, key.String())
			return true
		})
	case runtime.IsArray():
		for _, item := range runtime.Array() {
			meta.Runtime = append(meta.Runtime, item.String())
		}
	}
	block.Get("pod_env_vars").ForEach(func(key, value gjson.Result) bool {
		meta.EnvVars = append(meta.EnvVars, EnvVar{Key: key.String(), Value: value.String()})
		return true
	})
	settings.Block("dimensions").ForEach(func(key, _ gjson.Result) bool {
		meta.Dimensions = append(meta.Dimensions, key.String())
		return true
	})
	if freq := settings.Block("data").Get("frequency"); freq.Exists() {
		meta.Frequency = freq.String()
	} else if len(meta.Variables) > 0 {
		meta.Frequency = meta.Variables[0].Frequency
	}
	return meta
}

func parseVariable(name string, value gjson.Result) Variable {
	v := Variable{
		Name:         name,
		UseExactName: value.Get("use_exact_name").Bool(),
		Frequency:    value.Get("frequency").String(),
	}
	if std := value.Get("standard_name"); std.Exists() && std.Type != gjson.Null {
		v.StandardName = std.String()
		v.hasStandardKey = true
	}
	if dims := value.Get("dimensions"); dims.IsArray() {
		v.NDims = len(dims.Array())
	}
	if scalar := value.Get("scalar_coordinates"); scalar.IsObject() {
		if lev := scalar.Get("lev"); lev.Exists() {
			v.ScalarSuffix = lev.String()
		} else if plev := scalar.Get("plev"); plev.Exists() {
			v.ScalarSuffix = plev.String()
		}
	}
	return v
}

// HasDimension reports whether name is among the POD dimensions.
func (m *Metadata) HasDimension(name string) bool {
	for _, dim := range m.Dimensions {
		if dim == name {
			return true
		}
	}
	return false
}
