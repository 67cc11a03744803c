package tui

import (
	"fmt"
	"strings"
)

// renderStatusPanel renders the container status and controls
func (m Model) renderStatusPanel(width, height int) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("🐳 dockermon") + "  " + mutedStyle.Render(m.client.URL()) + "\n\n")

	switch {
	case m.err != nil:
		s.WriteString(stoppedStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	case m.loading && m.status == nil:
		s.WriteString("Loading...\n")
	case m.status != nil:
		header := fmt.Sprintf("%-30s %-12s", "NAME", "STATE")
		s.WriteString(headerStyle.Render(header) + "\n")

		state := m.status.State.Status
		stateStr := stoppedStyle.Render(state)
		if state == "running" {
			stateStr = runningStyle.Render(state)
		}
		s.WriteString(fmt.Sprintf("%-30s %s\n", truncate(trimSlash(m.status.Name), 30), stateStr))
	}

	if m.message != "" {
		s.WriteString("\n" + m.message + "\n")
	}

	help := "[s] start  [x] stop  [r] refresh  [q] quit"
	s.WriteString(helpStyle.Render(help))

	return panelStyle.
		Width(max(width-4, 0)).
		Height(max(height-4, 0)).
		Render(s.String())
}

// renderLogPanel renders the log panel
func (m Model) renderLogPanel(width, height int) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("📋 Logs") + "\n\n")

	streamState := stoppedStyle.Render("disconnected")
	if m.streaming {
		streamState = runningStyle.Render("live")
	}
	s.WriteString("Stream: " + streamState)
	if m.logsAutoScroll {
		s.WriteString(" [Auto-scroll: ON]")
	}
	s.WriteString("\n\n")

	if len(m.logs) == 0 {
		s.WriteString("No logs yet...")
	} else {
		visibleLines := m.calculateVisibleLogLines()

		// Calculate the window of logs to display
		totalLogs := len(m.logs)
		start := min(max(m.logsScroll, 0), m.calculateMaxScroll())
		end := min(start+visibleLines, totalLogs)

		maxLineWidth := width - 8
		for i := start; i < end; i++ {
			s.WriteString(styleLogLine(m.logs[i], maxLineWidth) + "\n")
		}

		if totalLogs > visibleLines {
			s.WriteString(fmt.Sprintf("\n[%d/%d] ↑/↓ PgUp/PgDown Home/End:scroll | a:toggle auto | c:clear",
				start+1, totalLogs))
		}
	}

	return panelStyle.
		Width(max(width-4, 0)).
		Height(max(height-4, 0)).
		Render(s.String())
}
