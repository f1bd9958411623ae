// Package ui renders pipeline results for the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorText      = lipgloss.Color("252")
	ColorCyan      = lipgloss.Color("87")

	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}

// statusStyle colors a task status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "done":
		return StyleSuccess
	case "in-progress", "review":
		return lipgloss.NewStyle().Foreground(ColorCyan)
	case "deferred", "cancelled":
		return StyleSubtle
	default:
		return StyleText
	}
}

// scoreStyle colors a complexity score by bucket (1-3, 4-7, 8-10).
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 8:
		return StyleError
	case score >= 4:
		return StyleWarning
	default:
		return StyleSuccess
	}
}
