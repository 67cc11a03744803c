package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeAttacher struct {
	stream io.ReadCloser
	err    error
	calls  int
	name   string
}

func (f *fakeAttacher) AttachContainer(ctx context.Context, id string) (io.ReadCloser, error) {
	f.calls++
	f.name = id
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

// pipeStream lets a test feed the relay at its own pace.
type pipeStream struct {
	*io.PipeReader
	closed chan struct{}
}

func (p *pipeStream) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return p.PipeReader.Close()
}

var _ = Describe("stream relay", func() {

	var (
		logs   *bytes.Buffer
		logger *logrus.Entry
	)

	BeforeEach(func() {
		logs = &bytes.Buffer{}
		base := logrus.New()
		base.SetOutput(logs)
		base.SetFormatter(&logrus.JSONFormatter{})
		logger = logrus.NewEntry(base)
	})

	serve := func(relay *Relay) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		relay.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
		return rec
	}

	It("forwards each chunk as one ordered event and ends with the upstream", func() {
		upstream := newScriptedReader(nil, "ab", "c\n")
		source := &fakeAttacher{stream: upstream}

		rec := serve(New(source, Config{Container: "web"}, logger))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(rec.Body.String()).To(Equal("data: ab\n\ndata: c<newline>\n\n"))
		Expect(source.calls).To(Equal(1))
		Expect(source.name).To(Equal("web"))
		Expect(upstream.closed).To(BeClosed())
	})

	It("redacts endpoints before they reach the client", func() {
		source := &fakeAttacher{stream: newScriptedReader(nil, "Connection from 10.0.0.5:4512 accepted\n")}
		rec := serve(New(source, Config{Container: "web"}, logger))
		Expect(rec.Body.String()).To(Equal("data: Connection from [REDACTED] accepted<newline>\n\n"))
	})

	It("closes the stream right away when the attach fails", func() {
		source := &fakeAttacher{err: errors.New("connection refused")}
		rec := serve(New(source, Config{Container: "web"}, logger))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(BeEmpty())
		Expect(logs.String()).To(ContainSubstring("attach failed"))
	})

	It("logs an upstream read error and ends the stream gracefully", func() {
		upstream := newScriptedReader(errors.New("connection reset"), "partial\n")
		rec := serve(New(&fakeAttacher{stream: upstream}, Config{Container: "web"}, logger))

		Expect(rec.Body.String()).To(Equal("data: partial<newline>\n\n"))
		Expect(logs.String()).To(ContainSubstring("upstream read failed"))
		Expect(logs.String()).To(ContainSubstring("connection reset"))
	})

	It("keeps an idle stream alive and tears the upstream down when the client leaves", func() {
		pr, pw := io.Pipe()
		upstream := &pipeStream{PipeReader: pr, closed: make(chan struct{})}
		relay := New(&fakeAttacher{stream: upstream}, Config{
			Container: "web",
			KeepAlive: 20 * time.Millisecond,
		}, logger)

		server := httptest.NewServer(relay)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		lines := bufio.NewReader(resp.Body)
		readLine := func() string {
			line, err := lines.ReadString('\n')
			Expect(err).NotTo(HaveOccurred())
			return strings.TrimRight(line, "\n")
		}

		By("receiving a keep-alive comment while upstream is quiet")
		Expect(readLine()).To(Equal(":"))

		By("receiving data written upstream")
		go func() {
			_, _ = pw.Write([]byte("hi\n"))
		}()
		line := readLine()
		for line == "" || line == ":" {
			line = readLine()
		}
		Expect(line).To(Equal("data: hi<newline>"))

		By("disconnecting the client")
		cancel()
		Eventually(upstream.closed).Should(BeClosed())
	})

})
