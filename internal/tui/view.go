package tui

import "github.com/charmbracelet/lipgloss"

// View renders the TUI interface
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Connecting to " + m.client.URL() + "..."
	}

	statusPanel := m.renderStatusPanel(m.width, statusPanelHeight)
	logPanel := m.renderLogPanel(m.width, m.logPanelHeight())

	return lipgloss.JoinVertical(lipgloss.Left, statusPanel, logPanel)
}
