package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", DefaultMaxInputSize - 1, false},
		{"Exact Limit", DefaultMaxInputSize, false},
		{"Over Limit", DefaultMaxInputSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeInput(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput_Cleaning(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed\r", "Line1\nLine2\tTabbed\r"},
		{"ANSI Colour", "\x1b[31mRed\x1b[0m", "Red"},
		{"Cursor Movement", "a\x1b[2Kb\x1b[?25lc", "abc"},
		{"OSC Title", "\x1b]0;pwned\x07text", "text"},
		{"Lone Escape", "esc\x1bape", "escape"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
		{"Decomposed Accent", "cafe\u0301", "caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := SanitizeInput("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = SanitizeInput("12345")
	assert.NoError(t, err)

	t.Setenv(EnvMaxInputSize, "not-a-number")
	_, err = SanitizeInput("12345678901")
	assert.NoError(t, err, "an unparsable override falls back to the default")
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizeInputLimit(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "2")

	got, err := SanitizeInputLimit("abcd\x07", 8)
	require.NoError(t, err)
	assert.Equal(t, "abcd", got)

	_, err = SanitizeInputLimit("abcd", 3)
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = SanitizeInputLimit(strings.Repeat("a", DefaultMaxInputSize), 0)
	assert.NoError(t, err, "zero limit uses the default")
}
