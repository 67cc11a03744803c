package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Level  string
	Format string
	Writer io.Writer
}

type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Init configures the logrus standard logger and returns it.
func Init(cfg Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	configure(logger, cfg)
	return logger
}

// New creates a separate logger using the provided configuration.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	configure(logger, cfg)
	return logger
}

func configure(logger *logrus.Logger, cfg Config) {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	logger.SetOutput(writer)
	logger.SetLevel(parseLevel(cfg.Level))
	logger.SetFormatter(newFormatter(cfg.Format))
}

func newFormatter(format string) logrus.Formatter {
	switch LogFormat(strings.ToLower(strings.TrimSpace(format))) {
	case FormatJSON:
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return &logrus.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FullTimestamp:   true,
		}
	}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ValidLevel reports whether level names a level parseLevel understands.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// WithComponent returns a logger annotated with the provided component field.
func WithComponent(logger logrus.FieldLogger, component string) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", component)
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// ContextWithRequestID adds the provided request ID to the context when it is non-empty.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, trimmed)
}

// RequestIDFromContext extracts the request ID previously stored on the context.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(requestIDKey).(string)
	return value, ok && value != ""
}

// ContextWithLogger attaches a logger to the context when available.
func ContextWithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns fallback annotated with the request ID held in ctx.
// Without a fallback the request-scoped logger stored by RequestID is used,
// and failing that the standard logger.
func FromContext(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if fallback == nil {
		if ctx != nil {
			if logger, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
				return logger
			}
		}
		fallback = logrus.NewEntry(logrus.StandardLogger())
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		return fallback.WithField("request_id", id)
	}
	return fallback
}
