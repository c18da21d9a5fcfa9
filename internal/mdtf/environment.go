package mdtf

import (
	"strings"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
)

const envPrefix = "_MDTF_"

// BaseEnvironment hosts the ghostscript used for figure conversion.
const BaseEnvironment = envPrefix + "base"

// EnvironmentFor returns the conda environment a POD runs in. Two PODs ship
// their own environment; the rest are chosen by language.
func EnvironmentFor(podName string, runtime []string) (string, error) {
	for _, special := range []string{"convective_transition_diag", "ENSO_MSE"} {
		if strings.Contains(podName, special) {
			return envPrefix + special, nil
		}
	}
	langs := make(map[string]bool, len(runtime))
	for _, tag := range runtime {
		langs[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	switch {
	case langs["r"] || langs["rscript"]:
		return envPrefix + "R_base", nil
	case langs["ncl"]:
		return envPrefix + "NCL_base", nil
	case langs["python2"]:
		return "", cmecerr.New(cmecerr.KindUnsupportedRuntime, "MDTF POD error: Python 2 not supported for new PODs")
	case langs["python3"]:
		return envPrefix + "python3_base", nil
	default:
		return "", cmecerr.New(cmecerr.KindUnsupportedRuntime, "MDTF POD environment not found for %s", podName)
	}
}
