// Package shared provides shared types, styles, and constants for the TUI package.
package shared

import "github.com/charmbracelet/lipgloss"

// Color definitions for the TUI
var (
	ColorError    = lipgloss.Color("#FF5555") // Red - failures
	ColorWarn     = lipgloss.Color("#FFAA00") // Orange - pending work
	ColorGreen    = lipgloss.Color("#55FF55") // Green - success
	ColorBorder   = lipgloss.Color("#444444") // Border color
	ColorDimmed   = lipgloss.Color("#666666") // Dimmed text
	ColorAccent   = lipgloss.Color("#7B68EE") // Accent color (medium slate blue)
	ColorSelected = lipgloss.Color("#333333") // Selected row background
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	SelectedRowStyle = lipgloss.NewStyle().
				Background(ColorSelected)

	// Transcript roles
	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorGreen)

	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorAccent)

	SystemLabelStyle = lipgloss.NewStyle().
				Foreground(ColorDimmed)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	ThinkingStyle = lipgloss.NewStyle().
			Foreground(ColorWarn).
			Italic(true)

	// Modal styles
	ModalBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)

	ModalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			MarginBottom(1)

	InputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(ColorBorder)

	// Help/Footer styles
	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)

	SelectionMarker = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)
)

const (
	SelectionChar    = "▶"
	CurrentChar      = "●"
	EllipsisChar     = "…"
	UserLabel        = "You"
	AssistantLabel   = "Assistant"
	SystemLabel      = "System"
	GuestDisplayName = "guest"
)

// RenderDivider creates a horizontal divider of the specified width
func RenderDivider(width int) string {
	return DividerStyle.Render(repeatChar('─', width))
}

// repeatChar returns a string with the character repeated n times
func repeatChar(char rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = char
	}
	return string(result)
}

// Truncate shortens s to at most width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return EllipsisChar
	}
	return string(r[:width-1]) + EllipsisChar
}
