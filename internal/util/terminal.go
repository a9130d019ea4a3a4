package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether the file descriptor is attached to a TTY
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// TerminalWidth returns the terminal width, or 80 when not a terminal
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return width
}
