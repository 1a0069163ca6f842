package tui

import "github.com/charmbracelet/lipgloss"

// Color Palette
// Single source of truth for all monitor colors.
var (
	skyBlue     = lipgloss.Color("#A5CDFF") // Soft blue - primary accent
	mintGreen   = lipgloss.Color("#A8E6CF") // Soft mint green - success states
	amberYellow = lipgloss.Color("#FFE0A3") // Muted amber - waiting states
	salmonPink  = lipgloss.Color("#FFB3BA") // Soft salmon - failures
	mutedGray   = lipgloss.Color("#6B7280") // Muted gray - secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // Bright white - primary text
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(skyBlue).
			Bold(true)

	brokerStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Bold(true)

	stepStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	waitingStyle = lipgloss.NewStyle().
			Foreground(amberYellow).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	gateBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(amberYellow).
			Padding(0, 1)
)
