package server

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rusenback/dockergate/internal/docker"
	"github.com/rusenback/dockergate/internal/model"
)

type fakeDocker struct {
	mu sync.Mutex

	status     *model.ContainerStatus
	inspectErr error
	startErr   error
	stopErr    error
	logs       string
	logsErr    error
	attach     string
	attachErr  error

	tails   []int
	started int
	stopped int
}

var _ docker.DockerClient = (*fakeDocker)(nil)

func (f *fakeDocker) InspectContainer(ctx context.Context, id string) (*model.ContainerStatus, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	return f.status, nil
}

func (f *fakeDocker) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeDocker) StopContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeDocker) ContainerLogs(ctx context.Context, id string, tail int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tails = append(f.tails, tail)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return []byte(f.logs), nil
}

func (f *fakeDocker) AttachContainer(ctx context.Context, id string) (io.ReadCloser, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return io.NopCloser(strings.NewReader(f.attach)), nil
}

func (f *fakeDocker) Close() error { return nil }

type fakeAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
	limits  []int
}

func (f *fakeAudit) Record(entry model.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}
