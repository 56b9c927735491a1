package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// Theme colors
var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorMuted  = lipgloss.Color("#6F6E69")
	colorWarn   = lipgloss.Color("#DA702C")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)

	titleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarn)
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if os.Getenv("NO_COLOR") != "" {
			return false
		}
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// title renders the report banner.
func (wr *Writer) title(text string) string {
	if !wr.colorize {
		return "=== " + text + " ==="
	}
	return titleBox.Render(titleStyle.Render(text))
}

// section renders a section heading.
func (wr *Writer) section(text string) string {
	line := "--- " + text + " ---"
	if !wr.colorize {
		return line
	}
	return headerStyle.Render(line)
}

// muted renders a notice line.
func (wr *Writer) muted(text string) string {
	if !wr.colorize {
		return text
	}
	return mutedStyle.Render(text)
}

// warn renders a count that signals trouble when non-zero.
func (wr *Writer) warn(text string, nonZero bool) string {
	if !wr.colorize || !nonZero {
		return text
	}
	return warnStyle.Render(text)
}
