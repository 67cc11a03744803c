package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/dockergate/internal/model"
)

const refreshInterval = 2 * time.Second

// tickCmd creates a command that sends a tick message every 2 seconds
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatus creates a command to fetch the container status
func fetchStatus(client Gateway) tea.Cmd {
	return func() tea.Msg {
		status, err := client.Status(context.Background())
		return statusMsg{status: status, err: err}
	}
}

// openStream starts following the gateway's log stream
func openStream(client Gateway) tea.Cmd {
	return func() tea.Msg {
		lines, errs, cancel := client.Stream(context.Background())
		return streamOpenedMsg{lines: lines, errs: errs, cancel: cancel}
	}
}

// waitForLogs creates a command that waits for the next log line. The error
// channel is only read once the line channel is closed and drained.
func waitForLogs(logsChan <-chan model.LogLine, errChan <-chan error) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-logsChan
		if ok {
			return logsMsg{line: line}
		}
		// The stream sends its error before it closes the line channel.
		select {
		case err := <-errChan:
			return logsMsg{err: err, closed: true}
		default:
			return logsMsg{closed: true}
		}
	}
}

// startContainer creates a command to start the container
func startContainer(client Gateway, name string) tea.Cmd {
	return func() tea.Msg {
		changed, err := client.Start(context.Background())
		message := "Started: " + name
		if !changed {
			message = "Already running: " + name
		}
		return actionMsg{message: message, err: err}
	}
}

// stopContainer creates a command to stop the container
func stopContainer(client Gateway, name string) tea.Cmd {
	return func() tea.Msg {
		changed, err := client.Stop(context.Background())
		message := "Stopped: " + name
		if !changed {
			message = "Already stopped: " + name
		}
		return actionMsg{message: message, err: err}
	}
}
