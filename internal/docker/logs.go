// internal/docker/logs.go
package docker

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerLogs retrieves the stdout log of a container. A positive tail
// limits the result to the last tail lines, zero or negative returns
// everything the engine has.
func (c *Client) ContainerLogs(ctx context.Context, id string, tail int) ([]byte, error) {
	status, err := c.InspectContainer(ctx, id)
	if err != nil {
		return nil, err
	}

	// A full log can be large.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	options := container.LogsOptions{
		ShowStdout: true,
	}
	if tail > 0 {
		options.Tail = strconv.Itoa(tail) // Get last N lines
	}

	reader, err := c.cli.ContainerLogs(ctx, id, options)
	if err != nil {
		return nil, classify(err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if status.Tty {
		_, err = io.Copy(&buf, reader)
	} else {
		// Non-TTY containers multiplex stdout/stderr with 8-byte frame headers
		_, err = stdcopy.StdCopy(&buf, io.Discard, reader)
	}
	if err != nil {
		return nil, classify(err)
	}
	return buf.Bytes(), nil
}

// AttachContainer attaches to the live stdout of a container, replaying the
// existing log first. Reads return bytes as the engine sends them; closing
// the returned reader tears down the upstream connection.
func (c *Client) AttachContainer(ctx context.Context, id string) (io.ReadCloser, error) {
	// Inspect first: a hijacked attach hides the engine's 404 behind a
	// generic upgrade error.
	status, err := c.InspectContainer(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := c.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Logs:   true,
	})
	if err != nil {
		return nil, classify(err)
	}

	if status.Tty {
		return &attachedStream{Reader: resp.Reader, close: resp.Close}, nil
	}
	return demux(resp.Reader, resp.Close), nil
}

type attachedStream struct {
	io.Reader
	close func()
}

func (s *attachedStream) Close() error {
	s.close()
	return nil
}

// demux strips the stdout/stderr frame headers of src in a goroutine. Each
// frame payload reaches the reader as its own write, so chunk boundaries
// follow what the engine sent.
func demux(src io.Reader, closeSrc func()) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, io.Discard, src)
		pw.CloseWithError(err)
	}()
	return &attachedStream{
		Reader: pr,
		close: func() {
			closeSrc()
			pr.Close()
		},
	}
}
