package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Strata banner to w, colored when the terminal allows it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Layered bands, darkest at the bottom
	lines := []struct{ text, color string }{
		{"     _             _        ", "#fde68a"},
		{" ___| |_ _ __ __ _| |_ __ _ ", "#fbbf24"},
		{"/ __| __| '__/ _` | __/ _` |", "#f59e0b"},
		{"\\__ \\ |_| | | (_| | || (_| |", "#d97706"},
		{"|___/\\__|_|  \\__,_|\\__\\__,_|", "#b45309"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
