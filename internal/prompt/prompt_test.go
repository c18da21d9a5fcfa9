package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineEmptyAnswerUsesDefault(t *testing.T) {
	var out bytes.Buffer
	p := NewLine(strings.NewReader("\n"), &out)
	got, err := p.Confirm("Overwrite?", true)
	require.NoError(t, err)
	require.True(t, got)
	require.Equal(t, "Overwrite? [y/n] ", out.String())
}

func TestLineRepeatsOnGarbage(t *testing.T) {
	var out bytes.Buffer
	p := NewLine(strings.NewReader("maybe\nNO\n"), &out)
	got, err := p.Confirm("Overwrite?", true)
	require.NoError(t, err)
	require.False(t, got)
	require.Equal(t, 2, strings.Count(out.String(), "Overwrite? [y/n]"))
	require.Contains(t, out.String(), "Please respond 'y' or 'n'")
}

func TestLineAcceptsFinalAnswerWithoutNewline(t *testing.T) {
	p := NewLine(strings.NewReader("y"), &bytes.Buffer{})
	got, err := p.Confirm("Overwrite?", false)
	require.NoError(t, err)
	require.True(t, got)
}

func TestLineEOFIsNoAnswer(t *testing.T) {
	p := NewLine(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.Confirm("Overwrite?", true)
	require.ErrorIs(t, err, ErrNoAnswer)

	p = NewLine(strings.NewReader("what\n"), &bytes.Buffer{})
	_, err = p.Confirm("Overwrite?", true)
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestFuncAndAlways(t *testing.T) {
	got, err := Always(false).Confirm("q", true)
	require.NoError(t, err)
	require.False(t, got)

	var asked string
	p := Func(func(q string, def bool) (bool, error) {
		asked = q
		return def, nil
	})
	got, err = p.Confirm("Overwrite?", true)
	require.NoError(t, err)
	require.True(t, got)
	require.Equal(t, "Overwrite?", asked)
}
