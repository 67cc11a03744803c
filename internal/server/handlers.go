package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rusenback/dockergate/internal/docker"
	"github.com/rusenback/dockergate/internal/logging"
	"github.com/rusenback/dockergate/internal/model"
	"github.com/rusenback/dockergate/internal/redact"
	"github.com/rusenback/dockergate/internal/stream"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, r, "index.html", "text/html; charset=utf-8")
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, r, "script.js", "text/javascript; charset=utf-8")
}

// serveStatic reads the file on every request so the page can be edited
// without a restart.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, name, contentType string) {
	data, err := os.ReadFile(filepath.Join(s.cfg.StaticDir, name))
	if err != nil {
		logging.FromContext(r.Context(), s.logger).WithError(err).WithField("file", name).Error("static file unreadable")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleContainerJSON(w http.ResponseWriter, r *http.Request) {
	status, err := s.docker.InspectContainer(r.Context(), s.cfg.Container)
	if err != nil {
		s.upstreamError(w, r, "inspect", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleLogs serves the cached snapshot. It never touches the engine, so a
// stale snapshot is served while the engine is unreachable.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	snapshot := s.cache.Snapshot()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if snapshot.Version > 0 {
		// Last-Modified only has one second of resolution, so revalidation
		// goes through the publish counter alone.
		etag := `"` + strconv.FormatUint(snapshot.Version, 10) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Last-Modified", snapshot.UpdatedAt.UTC().Format(http.TimeFormat))
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(snapshot.Text))
}

// etagMatches reports whether an If-None-Match header lists etag. Weak
// validators compare equal to their strong form.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	lines := s.cfg.TailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "lines must be a non-negative integer")
			return
		}
		lines = n
	}

	body, err := s.docker.ContainerLogs(r.Context(), s.cfg.Container, lines)
	if err != nil {
		s.upstreamError(w, r, "tail", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(redact.Redact(stream.DecodeLossy(body))))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, "start", s.docker.StartContainer)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, "stop", s.docker.StopContainer)
}

// control forwards a start or stop and answers with the engine's outcome:
// 204 done, 304 nothing to do, 404 unknown container, 500 otherwise.
func (s *Server) control(w http.ResponseWriter, r *http.Request, action string, forward func(ctx context.Context, id string) error) {
	err := forward(r.Context(), s.cfg.Container)
	status := statusFor(err)

	log := logging.FromContext(r.Context(), s.logger).WithFields(logrus.Fields{
		"action":    action,
		"container": s.cfg.Container,
		"status":    status,
	})
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("container control failed")
	} else {
		log.Info("container control forwarded")
	}

	if s.audit != nil {
		requestID, _ := logging.RequestIDFromContext(r.Context())
		s.audit.Record(model.AuditEntry{
			Timestamp:  time.Now(),
			Action:     action,
			Container:  s.cfg.Container,
			Status:     status,
			RemoteAddr: r.RemoteAddr,
			RequestID:  requestID,
		})
	}

	switch status {
	case http.StatusNoContent, http.StatusNotModified:
		w.WriteHeader(status)
	default:
		writeError(w, status, http.StatusText(status))
	}
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "auditing is disabled")
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context(), s.logger).WithError(err).Error("audit query failed")
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context(), s.logger).WithError(err).WithField("op", op)
	if status == http.StatusInternalServerError {
		log.Error("upstream request failed")
	} else {
		log.Debug("upstream request rejected")
	}
	writeError(w, status, http.StatusText(status))
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusNoContent
	case errors.Is(err, docker.ErrNotModified):
		return http.StatusNotModified
	case errors.Is(err, docker.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
