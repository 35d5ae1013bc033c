package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the kiln banner in a warm gradient.
func PrintBanner(w io.Writer, p termenv.Profile) {
	lines := []struct{ text, color string }{
		{" _    _ _       ", "#fbbf24"},
		{"| | _(_) |_ __  ", "#f59e0b"},
		{"| |/ / | | '_ \\ ", "#f97316"},
		{"|   <| | | | | |", "#ef4444"},
		{"|_|\\_\\_|_|_| |_|", "#dc2626"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
