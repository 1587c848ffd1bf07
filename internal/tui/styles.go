// Package tui provides the interactive chat interface. It is a
// collaborator around the session manager: it submits outbound requests
// and re-renders on state update callbacks.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary  = lipgloss.Color("#7aa2f7")
	colorAccent   = lipgloss.Color("#bb9af7")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorWarning  = lipgloss.Color("#e0af68")
	colorError    = lipgloss.Color("#f7768e")
	colorText     = lipgloss.Color("#c0caf5")
	colorTextDim  = lipgloss.Color("#565f89")
	colorTextMute = lipgloss.Color("#3b4261")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	botLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	userBubbleStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorTextMute).
			Foreground(colorText).
			Padding(0, 1)

	botBubbleStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Foreground(colorText).
			Padding(0, 1)

	streamingStyle = lipgloss.NewStyle().
			Foreground(colorText)

	attachmentStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Italic(true)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	heartbeatStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	phaseStyles = map[string]lipgloss.Style{
		"connected":    lipgloss.NewStyle().Foreground(colorSuccess),
		"connecting":   lipgloss.NewStyle().Foreground(colorWarning),
		"reconnecting": lipgloss.NewStyle().Foreground(colorWarning),
		"disconnected": lipgloss.NewStyle().Foreground(colorTextDim),
		"failed":       lipgloss.NewStyle().Foreground(colorError),
	}
)

func phaseStyle(phase string) lipgloss.Style {
	if s, ok := phaseStyles[phase]; ok {
		return s
	}
	return statusStyle
}
