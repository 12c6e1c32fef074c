package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(80)
	require.NoError(t, err)

	out, err := render("# Distribution\n\n| Value | Actual |\n|---|---|\n| Red | 3 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Distribution")
	assert.Contains(t, out, "Red")
}

func TestPlain(t *testing.T) {
	out, err := Plain("# Title")
	require.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|___/")
}
