package desktop

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("42")
	subtle  = lipgloss.Color("240")
	danger  = lipgloss.Color("196")
	text    = lipgloss.Color("252")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Width(28)

	focusedLabelStyle = labelStyle.
				Foreground(text).
				Bold(true)

	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Foreground(primary).
			Bold(true).
			Padding(0, 1).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(danger).
			Foreground(danger).
			Padding(0, 1).
			MarginTop(1)

	docStyle = lipgloss.NewStyle().Margin(1, 2)
)
