package chat

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#8BC34A")
	primaryColor = lipgloss.Color("#2196F3")
	mutedColor   = lipgloss.Color("240")
	errColor     = lipgloss.Color("#e53935")
)

// Styles collects the lipgloss styles the chat view uses.
type Styles struct {
	Header    lipgloss.Style
	Badge     lipgloss.Style
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Cursor    lipgloss.Style
	Input     lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Badge:     lipgloss.NewStyle().Foreground(primaryColor),
		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginTop(1),
		BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginTop(1),
		Muted:     lipgloss.NewStyle().Foreground(mutedColor),
		Error:     lipgloss.NewStyle().Foreground(errColor),
		Cursor:    lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1),
	}
}
