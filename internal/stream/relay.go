// Package stream relays the live output of the target container to HTTP
// clients as Server-Sent Events. Every upstream chunk becomes exactly one
// event, in arrival order, after lossy UTF-8 decoding and redaction.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rusenback/dockergate/internal/logging"
)

// DefaultKeepAlive is how often an idle stream gets a comment line.
const DefaultKeepAlive = 15 * time.Second

// Attacher opens the live output of a container.
type Attacher interface {
	AttachContainer(ctx context.Context, id string) (io.ReadCloser, error)
}

type Config struct {
	Container string
	KeepAlive time.Duration
	ChunkSize int
}

// Relay is an http.Handler serving one upstream attach per request.
type Relay struct {
	source Attacher
	cfg    Config
	logger *logrus.Entry
}

func New(source Attacher, cfg Config, logger *logrus.Entry) *Relay {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Relay{
		source: source,
		cfg:    cfg,
		logger: logging.WithComponent(loggerOrDefault(logger), "relay").WithField("container", cfg.Container),
	}
}

func loggerOrDefault(logger *logrus.Entry) logrus.FieldLogger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, rl.logger)
	started := time.Now()

	upstream, attachErr := rl.source.AttachContainer(ctx, rl.cfg.Container)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	// The server's write timeout must not cut a long-lived stream.
	_ = rc.SetWriteDeadline(time.Time{})
	_ = rc.Flush()

	if attachErr != nil {
		log.WithError(attachErr).Error("attach failed")
		return
	}

	events := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		rl.pump(ctx, upstream, events, errc)
	}()
	defer func() {
		upstream.Close()
		<-done
	}()

	log.Info("stream attached")

	keepAlive := time.NewTicker(rl.cfg.KeepAlive)
	defer keepAlive.Stop()

	var sent int
	for {
		select {
		case <-ctx.Done():
			log.WithField("events", sent).Info("client disconnected")
			return

		case data, ok := <-events:
			if !ok {
				select {
				case err := <-errc:
					log.WithError(err).WithField("events", sent).Error("upstream read failed")
				default:
					log.WithFields(logrus.Fields{
						"events":   sent,
						"duration": time.Since(started).Round(time.Millisecond),
					}).Info("upstream stream ended")
				}
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				log.WithError(err).Warn("client write failed")
				return
			}
			_ = rc.Flush()
			sent++

		case <-keepAlive.C:
			if _, err := io.WriteString(w, ":\n\n"); err != nil {
				log.WithError(err).Warn("client write failed")
				return
			}
			_ = rc.Flush()
		}
	}
}

// pump feeds events to the serving loop in upstream order. It stops when
// the upstream ends or errors, or when the client went away.
func (rl *Relay) pump(ctx context.Context, upstream io.Reader, events chan<- string, errc chan<- error) {
	defer close(events)
	for data, err := range Events(Chunks(upstream, rl.cfg.ChunkSize)) {
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.ErrClosedPipe) {
				errc <- err
			}
			return
		}
		select {
		case events <- data:
		case <-ctx.Done():
			return
		}
	}
}
