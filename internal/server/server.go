// Package server exposes the gateway HTTP API: container status and
// control, cached and tailed logs, the live event stream and the static
// control page.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rusenback/dockergate/internal/docker"
	"github.com/rusenback/dockergate/internal/logcache"
	"github.com/rusenback/dockergate/internal/logging"
	"github.com/rusenback/dockergate/internal/model"
	"github.com/rusenback/dockergate/internal/serverutil"
	"github.com/rusenback/dockergate/internal/stream"
)

// AuditStore records forwarded start/stop requests.
type AuditStore interface {
	Record(entry model.AuditEntry)
	Recent(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

type Config struct {
	Addr        string
	Container   string
	StaticDir   string
	TailLines   int
	KeepAlive   time.Duration
	CORSOrigins []string
	// Audit is optional. Without it /api/audit answers 404.
	Audit  AuditStore
	Logger *logrus.Entry
}

type Server struct {
	httpServer *http.Server
	docker     docker.DockerClient
	cache      *logcache.Cache
	relay      *stream.Relay
	audit      AuditStore
	cfg        Config
	logger     *logrus.Entry
}

func New(client docker.DockerClient, cache *logcache.Cache, cfg Config) (*Server, error) {
	if cfg.StaticDir == "" {
		cfg.StaticDir = "."
	}
	if cfg.TailLines < 0 {
		cfg.TailLines = 0
	}
	base := cfg.Logger
	if base == nil {
		base = logrus.NewEntry(logrus.StandardLogger())
	}
	logger := logging.WithComponent(base, "http")

	policy, err := newCORSPolicy(cfg.CORSOrigins)
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}

	s := &Server{
		docker: client,
		cache:  cache,
		audit:  cfg.Audit,
		cfg:    cfg,
		logger: logger,
		relay: stream.New(client, stream.Config{
			Container: cfg.Container,
			KeepAlive: cfg.KeepAlive,
		}, base),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /script.js", s.handleScript)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/json", s.handleContainerJSON)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/tail", s.handleTail)
	mux.Handle("GET /api/stream", s.relay)
	mux.Handle("POST /api/stream", s.relay)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/audit", s.handleAudit)

	handlerChain := http.Handler(mux)
	handlerChain = corsMiddleware(policy, logger, handlerChain)
	handlerChain = logging.RequestLogger(logger, handlerChain)
	handlerChain = logging.RequestID(logger, handlerChain)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The event stream lifts this deadline for its own responses.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled. ready, when non-nil, receives the
// bound address.
func (s *Server) Run(ctx context.Context, ready func(net.Addr)) error {
	return serverutil.Run(ctx, serverutil.Config{
		Server: s.httpServer,
		Ready: func(addr net.Addr) {
			s.logger.WithField("addr", addr.String()).Info("listening")
			if ready != nil {
				ready(addr)
			}
		},
	})
}
