package terminal

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red"))
)

// Status styles shared with the watch view.
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusSuccess = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)
