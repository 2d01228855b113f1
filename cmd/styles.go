package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorAccent = lipgloss.Color("#A8D8EA")
	colorMuted  = lipgloss.Color("#596E79")
	colorGood   = lipgloss.Color("#4ECDC4")
	colorBad    = lipgloss.Color("#FF6B6B")

	styleTitle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleHeader = lipgloss.NewStyle().Foreground(colorMuted).Bold(true).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
	styleGood   = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	styleBad    = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
)

// renderTable draws rows under headers with the CLI border style.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})
	return t.String()
}

func stateStyle(state string) lipgloss.Style {
	if state == "ALLOWED" {
		return styleGood
	}
	return styleBad
}
