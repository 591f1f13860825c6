package cmd

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitColor_NonTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	initColor(&bytes.Buffer{})
	assert.False(t, colorEnabled)
	assert.True(t, color.NoColor)
}

func TestPrintJSON_Plain(t *testing.T) {
	colorEnabled = false

	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestPrintJSON_Color(t *testing.T) {
	colorEnabled = true
	defer func() { colorEnabled = false }()

	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]interface{}{"step": "Error"}))
	assert.Contains(t, buf.String(), "step")
	assert.Contains(t, buf.String(), "Error")
}
