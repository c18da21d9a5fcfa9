package mdtf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/logging"
	"github.com/kingrea/cmec-driver/internal/runscript"
)

// EnvLookup names the conda environment a POD activates.
type EnvLookup func(podName string, runtime []string) (string, error)

// Pod is a specialized target as seen by the POD block and its hooks.
type Pod struct {
	// Name is the token the POD was run under.
	Name string
	// Home is the POD source directory.
	Home     string
	WorkDir  string
	ModelDir string
	// ObsDir is empty when the run has no observations.
	ObsDir   string
	Metadata *Metadata
	// Settings is the POD's entry in the run configuration file.
	Settings map[string]any
}

// CaseName returns the required CASENAME setting.
func (p Pod) CaseName() (string, error) {
	value, ok := p.Settings["CASENAME"]
	if !ok {
		return "", cmecerr.New(cmecerr.KindMissingRequiredSetting, "'CASENAME' not found in module settings for %s", p.Name)
	}
	return FormatValue(value), nil
}

// Convention returns the naming convention from the run configuration.
func (p Pod) Convention() string {
	if value, ok := p.Settings["convention"]; ok {
		if s := FormatValue(value); s != "" {
			return s
		}
	}
	return "None"
}

// envKey is the POD directory name when known. Tokens are lowercased, so
// environments named after mixed-case PODs only match the directory.
func (p Pod) envKey() string {
	if p.Metadata != nil && p.Metadata.AltName != "" {
		return p.Metadata.AltName
	}
	return p.Name
}

// Block writes the POD section of cmec_run.bash.
type Block struct {
	Lookup EnvLookup
	Logger *logging.Logger
}

// Write appends the POD exports and environment activation to script.
func (b Block) Write(script *runscript.Script, pod Pod, fields *Fieldlist) error {
	logger := b.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	lookup := b.Lookup
	if lookup == nil {
		lookup = EnvironmentFor
	}
	meta := pod.Metadata
	if meta == nil {
		return fmt.Errorf("mdtf: %s has no POD metadata", pod.Name)
	}
	casename, err := pod.CaseName()
	if err != nil {
		return err
	}
	envName, err := lookup(pod.envKey(), meta.Runtime)
	if err != nil {
		return err
	}

	obs := "None"
	if pod.ObsDir != "" {
		obs = filepath.Join(pod.ObsDir, meta.AltName)
	}
	script.Blank()
	script.Comment("MDTF POD settings")
	script.Export("DATADIR", filepath.Join(pod.ModelDir, casename))
	script.Export("OBS_DATA", obs)
	script.Export("POD_HOME", pod.Home)
	script.Export("WK_DIR", pod.WorkDir)
	script.Export("RGB", filepath.Join(meta.Root, "shared", "rgb"))
	for _, key := range sortedKeys(pod.Settings) {
		script.Export(key, FormatValue(pod.Settings[key]))
	}
	for _, env := range meta.EnvVars {
		script.Export(env.Key, env.Value)
	}
	for _, env := range fields.EnvVars() {
		script.Export(env.Key, env.Value)
	}

	for _, v := range meta.Variables {
		fileVar := v.Name
		if fields.IsConvention() && v.HasStandardName() && !v.UseExactName {
			if name, ok := fields.Lookup(v.StandardName, v.NDims); ok {
				fileVar = name + v.ScalarSuffix
			} else {
				logger.Warn("variable not found in convention; using POD name",
					"variable", v.Name, "standard_name", v.StandardName, "fieldlist", fields.Path())
			}
		}
		script.Export(v.Name+"_var", fileVar)
		base := fmt.Sprintf("%s.%s.%s.nc", casename, fileVar, meta.Frequency)
		script.Export(strings.ToUpper(v.Name)+"_FILE", filepath.Join(pod.ModelDir, casename, meta.Frequency, base))
	}

	for _, dim := range coordinateDimensions(meta, pod.Settings) {
		script.Export(dim+"_coord", dim)
	}

	script.Blank()
	script.Line("source $CONDA_SOURCE")
	script.Line("conda activate $CONDA_ENV_ROOT/" + envName)
	return nil
}

// coordinateDimensions drops one of lev and plev when both are declared:
// plev by default, lev when USE_HYBRID_SIGMA is false.
func coordinateDimensions(meta *Metadata, settings map[string]any) []string {
	if !meta.HasDimension("lev") || !meta.HasDimension("plev") {
		return meta.Dimensions
	}
	drop := "plev"
	flag, ok := settings[hybridSigmaKey]
	if !ok {
		flag, ok = meta.HybridSigma, meta.HybridSigma != nil
	}
	if ok && !isTruthy(flag) {
		drop = "lev"
	}
	dims := make([]string, 0, len(meta.Dimensions)-1)
	for _, dim := range meta.Dimensions {
		if dim != drop {
			dims = append(dims, dim)
		}
	}
	return dims
}
