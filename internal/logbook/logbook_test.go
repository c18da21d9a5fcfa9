package logbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileNameFlattensNestedWorkDir(t *testing.T) {
	require.Equal(t, "cmec-driver.demo.log.txt", FileName("demo"))
	require.Equal(t, "cmec-driver.pmp.meanclimate.log.txt", FileName("pmp/meanclimate"))
}

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", FileName("demo"))
	book, err := New(path)
	require.NoError(t, err)

	var out strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&out, "entry-%d\n", i)
	}
	require.NoError(t, book.Write([]byte(out.String())))

	lines, total := book.Tail(3)
	require.Equal(t, 5, total)
	require.Equal(t, []string{"entry-2", "entry-3", "entry-4"}, lines)
}

func TestWriteOverwritesPreviousOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log.txt")
	book, err := New(path)
	require.NoError(t, err)
	require.NoError(t, book.Write([]byte("first\n")))
	require.NoError(t, book.Write([]byte("second\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second\n", string(data))
}

func TestTailMissingFile(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "missing.log"))
	require.NoError(t, err)
	lines, total := book.Tail(10)
	require.Nil(t, lines)
	require.Zero(t, total)
}
