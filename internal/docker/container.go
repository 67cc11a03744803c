// internal/docker/container.go
package docker

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/rusenback/dockergate/internal/model"
)

// stopTimeout on sekunteja, jotka engine odottaa ennen SIGKILLiä
const stopTimeout = 10

// InspectContainer palauttaa containerin nimen ja tilan
func (c *Client) InspectContainer(ctx context.Context, id string) (*model.ContainerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	info, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	status := &model.ContainerStatus{}
	if info.ContainerJSONBase != nil {
		status.Name = info.Name
		if info.State != nil {
			status.State.Status = info.State.Status
			status.Running = info.State.Running
		}
	}
	if info.Config != nil {
		status.Tty = info.Config.Tty
	}
	return status, nil
}

// StartContainer käynnistää containerin. The SDK treats the engine's 304
// as success, so the running state is checked first to keep it visible.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	status, err := c.InspectContainer(ctx, id)
	if err != nil {
		return err
	}
	if status.Running {
		return ErrNotModified
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return classify(c.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

// StopContainer pysäyttää containerin
func (c *Client) StopContainer(ctx context.Context, id string) error {
	status, err := c.InspectContainer(ctx, id)
	if err != nil {
		return err
	}
	if !status.Running {
		return ErrNotModified
	}

	ctx, cancel := context.WithTimeout(ctx, (stopTimeout+10)*time.Second)
	defer cancel()

	timeout := stopTimeout
	return classify(c.cli.ContainerStop(ctx, id, container.StopOptions{
		Timeout: &timeout,
	}))
}
