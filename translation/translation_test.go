package translation_test

import (
	"strings"
	"testing"

	"github.com/loomtale/dnxvm/translation"
	"github.com/stretchr/testify/require"
)

func TestLoadSkipsCommentsAndBlankLines(t *testing.T) {
	src := strings.Join([]string{
		"# a comment",
		"@meta line",
		"",
		`"Bonjour"`,
		`"Monde"`,
	}, "\n")

	lines, err := translation.Load(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, []string{"Bonjour", "Monde"}, lines)
}

func TestLoadStripsOneCharOnEachSide(t *testing.T) {
	lines, err := translation.Load(strings.NewReader("'x'\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, lines)
}

func TestLoadRejectsTooShortLine(t *testing.T) {
	_, err := translation.Load(strings.NewReader("x\n"))
	require.Error(t, err)
}
