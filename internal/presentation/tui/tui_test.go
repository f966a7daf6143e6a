package tui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	render, err := NewRenderer(nil)
	require.NoError(t, err)

	out, err := render("# Title\n\nSome **bold** text.")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}

func TestWidthFallsBack(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.Equal(t, 80, Width(f))
	assert.False(t, IsTerminal(nil))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "|_____")
	assert.Contains(t, buf.String(), "v1.2.3")
}
