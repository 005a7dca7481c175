package cli

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
)

var (
	// TitleStyle is for primary headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	// SubtitleStyle is for secondary text
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// SuccessStyle marks freshly installed packages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	// WarningStyle marks packages that still need work
	WarningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)
