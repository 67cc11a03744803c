package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/dockergate/internal/remote"
)

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.logsAutoScroll {
			m.logsScroll = m.calculateMaxScroll()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.logsCancel != nil {
				m.logsCancel()
				m.logsCancel = nil
			}
			return m, tea.Quit

		case "up", "k":
			if m.logsScroll > 0 {
				m.logsScroll--
				m.logsAutoScroll = false
			}

		case "down", "j":
			if m.logsScroll < m.calculateMaxScroll() {
				m.logsScroll++
			}
			if m.logsScroll >= m.calculateMaxScroll() {
				m.logsAutoScroll = true
			}

		case "pgup":
			// Scroll logs up by half page for better readability
			if m.logsScroll > 0 {
				scrollAmount := max(m.calculateVisibleLogLines()/2, 1)
				m.logsScroll = max(m.logsScroll-scrollAmount, 0)
				m.logsAutoScroll = false
			}

		case "pgdown":
			scrollAmount := max(m.calculateVisibleLogLines()/2, 1)
			maxScroll := m.calculateMaxScroll()
			m.logsScroll += scrollAmount
			if m.logsScroll >= maxScroll {
				m.logsScroll = maxScroll
				m.logsAutoScroll = true
			}

		case "home":
			m.logsScroll = 0
			m.logsAutoScroll = false

		case "end":
			m.logsScroll = m.calculateMaxScroll()
			m.logsAutoScroll = true

		case "a":
			// Toggle auto-scroll
			m.logsAutoScroll = !m.logsAutoScroll
			if m.logsAutoScroll {
				m.logsScroll = m.calculateMaxScroll()
			}

		case "c":
			m.logs = nil
			m.logsScroll = 0

		case "s":
			if !m.busy {
				m.busy = true
				m.message = "Starting..."
				return m, startContainer(m.client, m.containerName())
			}

		case "x":
			if !m.busy {
				m.busy = true
				m.message = "Stopping..."
				return m, stopContainer(m.client, m.containerName())
			}

		case "r":
			m.loading = true
			m.message = "Refreshing..."
			cmds := []tea.Cmd{fetchStatus(m.client)}
			if !m.streaming {
				cmds = append(cmds, openStream(m.client))
			}
			return m, tea.Batch(cmds...)
		}

	case tickMsg:
		return m, tea.Batch(fetchStatus(m.client), tickCmd())

	case statusMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = msg.status

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.message = msg.message
		}
		return m, fetchStatus(m.client)

	case streamOpenedMsg:
		if m.logsCancel != nil {
			m.logsCancel()
		}
		m.logsCancel = msg.cancel
		m.logsChan = msg.lines
		m.logsErrChan = msg.errs
		m.streaming = true
		return m, waitForLogs(m.logsChan, m.logsErrChan)

	case logsMsg:
		if msg.closed {
			m.streaming = false
			switch {
			case msg.err == nil:
			case errors.Is(msg.err, remote.ErrStreamEnded):
				m.message = "Log stream ended, press r to reconnect"
			default:
				m.message = fmt.Sprintf("Logs error: %v", msg.err)
			}
			return m, nil
		}

		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			dropped := len(m.logs) - maxLogLines
			m.logs = m.logs[dropped:]
			if !m.logsAutoScroll {
				m.logsScroll = max(m.logsScroll-dropped, 0)
			}
		}
		if m.logsAutoScroll {
			m.logsScroll = m.calculateMaxScroll()
		}
		// Keep waiting for the next log line
		return m, waitForLogs(m.logsChan, m.logsErrChan)
	}

	return m, nil
}

func (m Model) containerName() string {
	if m.status == nil || m.status.Name == "" {
		return "container"
	}
	return trimSlash(m.status.Name)
}
