// internal/docker/interface.go
package docker

import (
	"context"
	"io"

	"github.com/rusenback/dockergate/internal/model"
)

// DockerClient interface mahdollistaa mockauksen testeissä
type DockerClient interface {
	InspectContainer(ctx context.Context, id string) (*model.ContainerStatus, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	ContainerLogs(ctx context.Context, id string, tail int) ([]byte, error)
	AttachContainer(ctx context.Context, id string) (io.ReadCloser, error)
	Close() error
}

// Varmista että Client toteuttaa interfacen
var _ DockerClient = (*Client)(nil)
