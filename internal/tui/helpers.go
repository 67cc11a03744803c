package tui

import "strings"

// statusPanelHeight is the fixed height of the top panel, borders included.
const statusPanelHeight = 11

// truncate shortens a string to a maximum length
func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// trimSlash drops the leading slash the engine puts on container names.
func trimSlash(name string) string {
	return strings.TrimPrefix(name, "/")
}

// logPanelHeight is what is left below the status panel.
func (m Model) logPanelHeight() int {
	return max(m.height-statusPanelHeight, 0)
}

// calculateVisibleLogLines calculates how many log lines can fit in the panel
func (m Model) calculateVisibleLogLines() int {
	// Borders, padding, title, container line and the scroll indicator.
	visibleLines := m.logPanelHeight() - 12
	if visibleLines < 3 {
		visibleLines = 3
	}
	return visibleLines
}

// calculateMaxScroll calculates the maximum scroll position
func (m Model) calculateMaxScroll() int {
	maxScroll := len(m.logs) - m.calculateVisibleLogLines()
	if maxScroll < 0 {
		maxScroll = 0
	}
	return maxScroll
}
