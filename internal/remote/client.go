// Package remote is a client for the gateway HTTP API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/rusenback/dockergate/internal/model"
)

var (
	// ErrNotFound means the gateway does not know its container.
	ErrNotFound = errors.New("container not found")
	// ErrStreamEnded is reported when the gateway closes the log stream.
	ErrStreamEnded = errors.New("log stream ended")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError carries an unexpected HTTP status from the gateway.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: gateway answered %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// Client talks to one gateway.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the gateway at baseURL. A nil httpClient uses a
// client without an overall timeout so streams can stay open; plain
// requests are bounded by requestTimeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url must be http or https, got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{base: u, http: httpClient}, nil
}

const requestTimeout = 15 * time.Second

// URL returns the gateway base URL.
func (c *Client) URL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// Status returns the container name and state.
func (c *Client) Status(ctx context.Context) (*model.ContainerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/json")
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("status: %w", ErrNotFound)
	default:
		return nil, &StatusError{Op: "status", Code: resp.StatusCode}
	}

	var status model.ContainerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("status: decode: %w", err)
	}
	status.Running = status.State.Status == "running"
	return &status, nil
}

// Start asks the gateway to start the container. changed is false when it
// was already running.
func (c *Client) Start(ctx context.Context) (changed bool, err error) {
	return c.control(ctx, "start")
}

// Stop asks the gateway to stop the container. changed is false when it was
// already stopped.
func (c *Client) Stop(ctx context.Context) (changed bool, err error) {
	return c.control(ctx, "stop")
}

func (c *Client) control(ctx context.Context, action string) (bool, error) {
	// Stopping waits for the engine's stop timeout.
	ctx, cancel := context.WithTimeout(ctx, requestTimeout+10*time.Second)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/"+action)
	if err != nil {
		return false, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return true, nil
	case http.StatusNotModified:
		return false, nil
	case http.StatusNotFound:
		return false, fmt.Errorf("%s: %w", action, ErrNotFound)
	default:
		return false, &StatusError{Op: action, Code: resp.StatusCode}
	}
}
