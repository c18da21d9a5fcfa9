package cmecerr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := New(KindModuleNotFound, "Module %s not found in CMEC library", "pmp")
	require.ErrorIs(t, err, ModuleNotFound)
	require.NotErrorIs(t, err, DuplicateModule)
	require.Equal(t, "Module pmp not found in CMEC library", err.Error())
}

func TestWrappedErrorKeepsKindAndCause(t *testing.T) {
	err := fmt.Errorf("run: %w", Wrap(KindInvalidConfigFile, os.ErrNotExist, "could not load %s", "cmec.json"))
	require.ErrorIs(t, err, InvalidConfigFile)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, KindInvalidConfigFile, KindOf(err))
	require.Contains(t, err.Error(), "could not load cmec.json")
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
}
