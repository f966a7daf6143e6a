package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 80

// NewRenderer returns a function that renders markdown using glamour,
// wrapped to the width of out when it is a terminal.
func NewRenderer(out *os.File) (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(Width(out)),
	)
	if err != nil {
		return nil, err
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of f, or 80 when unknown.
func Width(f *os.File) int {
	if !IsTerminal(f) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}
