package docker

import (
	"errors"
	"fmt"

	"github.com/docker/docker/errdefs"
)

var (
	// ErrNotFound is returned when the engine answers with a client error,
	// which for a single named target means the container is not there.
	ErrNotFound = errors.New("no such container")

	// ErrUpstream covers every other failure: refused connections,
	// timeouts, server errors and undecodable responses.
	ErrUpstream = errors.New("upstream engine error")

	// ErrNotModified is returned by start/stop when the container is
	// already in the requested state.
	ErrNotModified = errors.New("container already in requested state")
)

// classify wraps an SDK error into one of the sentinel errors while keeping
// the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrNotModified) {
		return err
	}
	if isClientError(err) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// isClientError reports whether the engine rejected the request with a 4xx.
func isClientError(err error) bool {
	return errdefs.IsNotFound(err) ||
		errdefs.IsInvalidParameter(err) ||
		errdefs.IsConflict(err) ||
		errdefs.IsUnauthorized(err) ||
		errdefs.IsForbidden(err)
}
