package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rusenback/dockergate/internal/docker"
	"github.com/rusenback/dockergate/internal/logcache"
	"github.com/rusenback/dockergate/internal/model"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("gateway API", func() {

	var (
		engine  *fakeDocker
		cache   *logcache.Cache
		audit   *fakeAudit
		logs    *bytes.Buffer
		static  string
		cfg     Config
		handler http.Handler
	)

	BeforeEach(func() {
		engine = &fakeDocker{
			status: &model.ContainerStatus{Name: "/web", State: model.State{Status: "running"}, Running: true},
		}
		cache = logcache.New()
		audit = &fakeAudit{}
		logs = &bytes.Buffer{}
		static = GinkgoT().TempDir()

		base := logrus.New()
		base.SetOutput(logs)
		base.SetFormatter(&logrus.JSONFormatter{})

		cfg = Config{
			Container:   "web",
			StaticDir:   static,
			TailLines:   20,
			CORSOrigins: []string{"*"},
			Audit:       audit,
			Logger:      logrus.NewEntry(base),
		}
	})

	JustBeforeEach(func() {
		srv, err := New(engine, cache, cfg)
		Expect(err).NotTo(HaveOccurred())
		handler = srv.Handler()
	})

	do := func(method, target string, header ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		for i := 0; i+1 < len(header); i += 2 {
			req.Header.Set(header[i], header[i+1])
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	Describe("static files", func() {
		It("serves index.html and script.js from the static root", func() {
			Expect(os.WriteFile(filepath.Join(static, "index.html"), []byte("<html></html>"), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(static, "script.js"), []byte("console.log(1)"), 0o644)).To(Succeed())

			rec := do(http.MethodGet, "/")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(rec.Body.String()).To(Equal("<html></html>"))

			rec = do(http.MethodGet, "/script.js")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/javascript"))
			Expect(rec.Body.String()).To(Equal("console.log(1)"))
		})

		It("fails with 500 when a file is missing", func() {
			Expect(do(http.MethodGet, "/").Code).To(Equal(http.StatusInternalServerError))
			Expect(do(http.MethodGet, "/script.js").Code).To(Equal(http.StatusInternalServerError))
			Expect(logs.String()).To(ContainSubstring("static file unreadable"))
		})

		It("answers 404 for unknown paths", func() {
			Expect(do(http.MethodGet, "/nope").Code).To(Equal(http.StatusNotFound))
		})
	})

	It("reports health", func() {
		rec := do(http.MethodGet, "/healthz")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("ok"))
	})

	Describe("GET /api/json", func() {
		It("returns name and state", func() {
			rec := do(http.MethodGet, "/api/json")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Body.String()).To(MatchJSON(`{"Name":"/web","State":{"Status":"running"}}`))
		})

		It("maps an unknown container to 404", func() {
			engine.inspectErr = fmt.Errorf("inspect web: %w", docker.ErrNotFound)
			Expect(do(http.MethodGet, "/api/json").Code).To(Equal(http.StatusNotFound))
		})

		It("maps an unreachable engine to 500", func() {
			engine.inspectErr = fmt.Errorf("inspect web: %w", docker.ErrUpstream)
			Expect(do(http.MethodGet, "/api/json").Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("GET /api/logs", func() {
		It("returns an empty body before the first poll", func() {
			rec := do(http.MethodGet, "/api/logs")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(BeEmpty())
			Expect(rec.Header().Get("Last-Modified")).To(BeEmpty())
		})

		It("returns the cached snapshot without touching the engine", func() {
			cache.Update("Connection from [REDACTED] accepted\n")
			engine.logsErr = docker.ErrUpstream

			rec := do(http.MethodGet, "/api/logs")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
			Expect(rec.Body.String()).To(Equal("Connection from [REDACTED] accepted\n"))
			Expect(rec.Header().Get("Last-Modified")).NotTo(BeEmpty())
			Expect(engine.tails).To(BeEmpty())
		})

		It("answers 304 only while the snapshot is unchanged", func() {
			cache.Update("X")
			etag := do(http.MethodGet, "/api/logs").Header().Get("ETag")
			Expect(etag).NotTo(BeEmpty())

			rec := do(http.MethodGet, "/api/logs", "If-None-Match", etag)
			Expect(rec.Code).To(Equal(http.StatusNotModified))
			Expect(rec.Body.String()).To(BeEmpty())

			rec = do(http.MethodGet, "/api/logs", "If-None-Match", `"stale", W/`+etag)
			Expect(rec.Code).To(Equal(http.StatusNotModified))

			rec = do(http.MethodGet, "/api/logs", "If-None-Match", `"0"`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("X"))
		})

		It("serves a second publish made within the same second", func() {
			cache.Update("A")
			first := do(http.MethodGet, "/api/logs")
			cache.Update("B")

			rec := do(http.MethodGet, "/api/logs",
				"If-None-Match", first.Header().Get("ETag"),
				"If-Modified-Since", first.Header().Get("Last-Modified"))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("B"))
			Expect(rec.Header().Get("ETag")).NotTo(Equal(first.Header().Get("ETag")))
		})

		It("ignores If-Modified-Since on its own", func() {
			cache.Update("X")
			rec := do(http.MethodGet, "/api/logs", "If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("X"))
		})
	})

	Describe("GET /api/tail", func() {
		It("fetches the configured number of lines and redacts them", func() {
			engine.logs = "peer 192.168.0.10:8080 joined\n"
			rec := do(http.MethodGet, "/api/tail")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("peer [REDACTED] joined\n"))
			Expect(engine.tails).To(Equal([]int{20}))
		})

		It("honours the lines parameter", func() {
			Expect(do(http.MethodGet, "/api/tail?lines=5").Code).To(Equal(http.StatusOK))
			Expect(engine.tails).To(Equal([]int{5}))
		})

		It("rejects a malformed lines parameter", func() {
			Expect(do(http.MethodGet, "/api/tail?lines=-1").Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodGet, "/api/tail?lines=ten").Code).To(Equal(http.StatusBadRequest))
			Expect(engine.tails).To(BeEmpty())
		})

		It("maps upstream errors", func() {
			engine.logsErr = fmt.Errorf("logs web: %w", docker.ErrNotFound)
			Expect(do(http.MethodGet, "/api/tail").Code).To(Equal(http.StatusNotFound))

			engine.logsErr = fmt.Errorf("logs web: %w", docker.ErrUpstream)
			Expect(do(http.MethodGet, "/api/tail").Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("container control", func() {
		DescribeTable("maps the engine outcome",
			func(path string, err error, expected int) {
				engine.startErr = err
				engine.stopErr = err

				rec := do(http.MethodPost, path, "X-Request-Id", "req-1")
				Expect(rec.Code).To(Equal(expected))

				Expect(audit.entries).To(HaveLen(1))
				entry := audit.entries[0]
				Expect(entry.Status).To(Equal(expected))
				Expect(entry.Container).To(Equal("web"))
				Expect(entry.RequestID).To(Equal("req-1"))
				Expect(entry.Action).To(Equal(path[len("/api/"):]))
			},
			Entry("start", "/api/start", nil, http.StatusNoContent),
			Entry("start while running", "/api/start", fmt.Errorf("start web: %w", docker.ErrNotModified), http.StatusNotModified),
			Entry("start unknown", "/api/start", fmt.Errorf("start web: %w", docker.ErrNotFound), http.StatusNotFound),
			Entry("start failing", "/api/start", fmt.Errorf("start web: %w", docker.ErrUpstream), http.StatusInternalServerError),
			Entry("stop", "/api/stop", nil, http.StatusNoContent),
			Entry("stop while stopped", "/api/stop", fmt.Errorf("stop web: %w", docker.ErrNotModified), http.StatusNotModified),
			Entry("stop unknown", "/api/stop", fmt.Errorf("stop web: %w", docker.ErrNotFound), http.StatusNotFound),
			Entry("stop failing", "/api/stop", errors.New("boom"), http.StatusInternalServerError),
		)

		It("only accepts POST", func() {
			Expect(do(http.MethodGet, "/api/start").Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(engine.started).To(BeZero())
		})
	})

	Describe("GET /api/audit", func() {
		It("lists recent entries", func() {
			audit.entries = []model.AuditEntry{{ID: 1, Action: "stop", Container: "web", Status: 204}}
			rec := do(http.MethodGet, "/api/audit?limit=1000")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"action":"stop"`))
			Expect(audit.limits).To(Equal([]int{maxAuditLimit}))
		})

		It("rejects a bad limit", func() {
			Expect(do(http.MethodGet, "/api/audit?limit=0").Code).To(Equal(http.StatusBadRequest))
		})

		It("fails when the store fails", func() {
			audit.err = errors.New("disk full")
			Expect(do(http.MethodGet, "/api/audit").Code).To(Equal(http.StatusInternalServerError))
		})

		Context("without an audit store", func() {
			BeforeEach(func() { cfg.Audit = nil })

			It("answers 404 and still forwards control requests", func() {
				Expect(do(http.MethodGet, "/api/audit").Code).To(Equal(http.StatusNotFound))
				Expect(do(http.MethodPost, "/api/stop").Code).To(Equal(http.StatusNoContent))
			})
		})
	})

	Describe("/api/stream", func() {
		It("relays redacted chunks as events on GET and POST", func() {
			engine.attach = "Connection from 10.0.0.5:4512 accepted\n"
			for _, method := range []string{http.MethodGet, http.MethodPost} {
				rec := do(method, "/api/stream")
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Header().Get("Content-Type")).To(Equal("text/event-stream"))
				Expect(rec.Body.String()).To(Equal("data: Connection from [REDACTED] accepted<newline>\n\n"))
			}
		})

		It("closes immediately when the attach fails", func() {
			engine.attachErr = docker.ErrNotFound
			rec := do(http.MethodGet, "/api/stream")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(BeEmpty())
		})
	})

	Describe("middleware", func() {
		It("assigns a request ID and logs the request", func() {
			rec := do(http.MethodGet, "/healthz")
			Expect(rec.Header().Get("X-Request-Id")).NotTo(BeEmpty())
			Expect(logs.String()).To(ContainSubstring(`"msg":"request completed"`))
			Expect(logs.String()).To(ContainSubstring(`"path":"/healthz"`))
		})

		It("answers CORS preflight for any origin by default", func() {
			rec := do(http.MethodOptions, "/api/start",
				"Origin", "https://ops.example",
				"Access-Control-Request-Method", "POST")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
			Expect(engine.started).To(BeZero())
		})

		Context("with a restricted origin list", func() {
			BeforeEach(func() { cfg.CORSOrigins = []string{"https://ops.example"} })

			It("echoes allowed origins and blocks the rest", func() {
				rec := do(http.MethodGet, "/healthz", "Origin", "https://OPS.example")
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://OPS.example"))

				rec = do(http.MethodGet, "/healthz", "Origin", "https://evil.example")
				Expect(rec.Code).To(Equal(http.StatusForbidden))
			})

			It("lets same-origin requests through", func() {
				rec := do(http.MethodPost, "http://gateway.local/api/stop", "Origin", "http://gateway.local")
				Expect(rec.Code).To(Equal(http.StatusNoContent))
			})
		})

		It("rejects malformed configured origins", func() {
			cfg.CORSOrigins = []string{"not a url"}
			_, err := New(engine, cache, cfg)
			Expect(err).To(MatchError(ContainSubstring("cors")))
		})
	})

	It("runs and shuts down on cancel", func() {
		cfg.Addr = "127.0.0.1:0"
		srv, err := New(engine, cache, cfg)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		addrs := make(chan net.Addr, 1)
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx, func(a net.Addr) { addrs <- a }) }()

		var addr net.Addr
		Eventually(addrs).Should(Receive(&addr))
		resp, err := http.Get("http://" + addr.String() + "/healthz")
		Expect(err).NotTo(HaveOccurred())
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(string(body)).To(Equal("ok"))

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	})

})
