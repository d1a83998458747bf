package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnv selects the color mode: "always", "never", or "auto" (default).
const ColorEnv = "REDNIGHT_COLOR"

// ShouldUseColor reports whether stdout gets ANSI colors. REDNIGHT_COLOR
// wins, then NO_COLOR, CLICOLOR_FORCE and CLICOLOR, then TTY detection.
func ShouldUseColor() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(ColorEnv))) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
