package runner

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxInputSize bounds a participant message in bytes.
const DefaultMaxInputSize = 4096

// EnvMaxInputSize overrides DefaultMaxInputSize for SanitizeInput.
const EnvMaxInputSize = "LATTICE_MAX_INPUT_SIZE"

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// ansiSequence matches CSI and OSC terminal escapes.
var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

// SanitizeInput cleans a participant message: oversized or invalid UTF-8
// input is rejected, terminal escapes and control characters other than
// newline, tab and carriage return are removed, and the text is put in NFC.
// The limit comes from LATTICE_MAX_INPUT_SIZE when set.
func SanitizeInput(input string) (string, error) {
	return SanitizeInputLimit(input, maxInputSizeFromEnv())
}

// SanitizeInputLimit is SanitizeInput with an explicit byte limit.
// A non-positive limit falls back to DefaultMaxInputSize.
func SanitizeInputLimit(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	// Rejected rather than truncated so a turn never acts on a partial answer.
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexByte(input, 0x1b) >= 0 {
		input = ansiSequence.ReplaceAllString(input, "")
	}
	if strings.IndexFunc(input, unsafeControl) >= 0 {
		input = strings.Map(func(r rune) rune {
			if unsafeControl(r) {
				return -1
			}
			return r
		}, input)
	}
	return norm.NFC.String(input), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxInputSizeFromEnv() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
