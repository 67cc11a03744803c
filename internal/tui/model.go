package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/dockergate/internal/model"
)

// maxLogLines bounds the in-memory log buffer.
const maxLogLines = 1000

// Gateway is the part of the gateway API the monitor uses.
type Gateway interface {
	URL() string
	Status(ctx context.Context) (*model.ContainerStatus, error)
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) (bool, error)
	Stream(ctx context.Context) (<-chan model.LogLine, <-chan error, func())
}

// Model represents the TUI application state
type Model struct {
	client  Gateway
	status  *model.ContainerStatus
	err     error
	loading bool
	busy    bool
	message string
	width   int
	height  int

	logs           []model.LogLine
	logsCancel     func()
	logsScroll     int
	logsAutoScroll bool
	streaming      bool

	logsChan    <-chan model.LogLine
	logsErrChan <-chan error
}

// Message types for Bubbletea update loop
type tickMsg time.Time

type statusMsg struct {
	status *model.ContainerStatus
	err    error
}

type actionMsg struct {
	message string
	err     error
}

type streamOpenedMsg struct {
	lines  <-chan model.LogLine
	errs   <-chan error
	cancel func()
}

type logsMsg struct {
	line   model.LogLine
	err    error
	closed bool
}

// NewModel creates a new TUI model
func NewModel(client Gateway) Model {
	return Model{
		client:         client,
		loading:        true,
		logsAutoScroll: true,
	}
}

// Init fetches the status and opens the log stream right away.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchStatus(m.client), openStream(m.client), tickCmd())
}
