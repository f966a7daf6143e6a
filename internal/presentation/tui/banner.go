package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` _          _   _   _          `, "#818cf8"},
	{`| |    __ _| |_| |_(_) ___ ___ `, "#a78bfa"},
	{`| |   / _' | __| __| |/ __/ _ \`, "#c084fc"},
	{`| |__| (_| | |_| |_| | (_|  __/`, "#e879f9"},
	{`|_____\__,_|\__|\__|_|\___\___|`, "#f472b6"},
}

// PrintBanner writes the Lattice ASCII banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
