package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rusenback/dockergate/internal/model"
	"github.com/rusenback/dockergate/internal/stream"
)

const maxEventSize = 1 << 20

// Stream follows the gateway's live log stream. Lines are delivered whole;
// text after the last newline is held until it is completed or the stream
// ends. The error channel receives exactly one error when the stream stops
// for any reason other than cancel, ErrStreamEnded when the gateway closed
// it. cancel stops the stream and waits for the reader to exit.
func (c *Client) Stream(ctx context.Context) (<-chan model.LogLine, <-chan error, func()) {
	lines := make(chan model.LogLine, 100)
	errc := make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(lines)

		err := c.follow(ctx, lines)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrStreamEnded
		}
		errc <- err
	}()

	return lines, errc, func() {
		cancel()
		<-done
	}
}

func (c *Client) follow(ctx context.Context, lines chan<- model.LogLine) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/stream"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "stream", Code: resp.StatusCode}
	}

	var pending strings.Builder
	emit := func(text string) bool {
		select {
		case lines <- model.LogLine{Received: time.Now(), Text: text}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	err = readEvents(resp.Body, func(data string) bool {
		text := stream.Unformat(data)
		for {
			i := strings.IndexByte(text, '\n')
			if i < 0 {
				pending.WriteString(text)
				return true
			}
			pending.WriteString(text[:i])
			if !emit(pending.String()) {
				return false
			}
			pending.Reset()
			text = text[i+1:]
		}
	})

	if pending.Len() > 0 && ctx.Err() == nil {
		emit(pending.String())
	}
	return err
}

// readEvents parses a Server-Sent Events body and calls onEvent with the
// data of each event. Comment lines are skipped. It returns nil at EOF.
func readEvents(body io.Reader, onEvent func(data string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var (
		data    []string
		hasData bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if hasData {
				if !onEvent(strings.Join(data, "\n")) {
					return nil
				}
			}
			data, hasData = data[:0], false
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			data = append(data, value)
			hasData = true
		default:
			// event:, id: and retry: fields are not used by the gateway.
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stream: read: %w", err)
	}
	return nil
}
