// Package config resolves the gateway configuration from command line flags
// and an optional YAML file. Flags given explicitly win over file values,
// file values win over defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/rusenback/dockergate/internal/logging"
)

// ErrHelp is returned by Load when --help was requested.
var ErrHelp = pflag.ErrHelp

type Config struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Path string `yaml:"path"`

	TLSVerify bool   `yaml:"tls_verify"`
	CertPath  string `yaml:"cert_path"`

	Listen       string        `yaml:"listen"`
	PollInterval time.Duration `yaml:"poll_interval"`
	KeepAlive    time.Duration `yaml:"keepalive"`
	TailLines    int           `yaml:"tail"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	APIVersion   string        `yaml:"api_version"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	AuditDB        string        `yaml:"audit_db"`
	AuditRetention time.Duration `yaml:"audit_retention"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           "2375",
		Path:           "static/",
		Listen:         "0.0.0.0:3000",
		PollInterval:   10 * time.Second,
		KeepAlive:      15 * time.Second,
		TailLines:      20,
		CORSOrigins:    []string{"*"},
		LogLevel:       "info",
		LogFormat:      "text",
		AuditRetention: 7 * 24 * time.Hour,
	}
}

// Load parses args (without the program name). The file named by --config
// is applied first, then flags set on the command line override it.
func Load(args []string, output io.Writer) (Config, error) {
	// First pass only finds --config.
	var (
		scratch Config
		path    string
	)
	probe := newFlagSet(&scratch, &path, io.Discard)
	probeErr := probe.Parse(args)

	cfg := Default()
	if probeErr == nil && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	var configFile string
	fs := newFlagSet(&cfg, &configFile, output)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func newFlagSet(cfg *Config, configFile *string, output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("dockergate", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: dockergate --name <container> [flags]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVarP(&cfg.Name, "name", "n", cfg.Name, "name of the container to control (required)")
	fs.StringVarP(&cfg.Host, "host", "h", cfg.Host, "engine API host")
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "engine API port")
	fs.StringVar(&cfg.Path, "path", cfg.Path, "directory holding index.html and script.js")
	fs.BoolVar(&cfg.TLSVerify, "tls-verify", cfg.TLSVerify, "talk to the engine over TLS (usually port 2376)")
	fs.StringVar(&cfg.CertPath, "cert-path", cfg.CertPath, "directory holding ca.pem, cert.pem and key.pem")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "address the gateway listens on")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "how often the log cache is refreshed")
	fs.DurationVar(&cfg.KeepAlive, "keepalive", cfg.KeepAlive, "idle interval between stream keep-alive comments")
	fs.IntVar(&cfg.TailLines, "tail", cfg.TailLines, "default number of lines returned by /api/tail")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origin", cfg.CORSOrigins, "allowed CORS origin (repeatable, * for any)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.AuditDB, "audit-db", cfg.AuditDB, "sqlite file recording start/stop actions (empty disables)")
	fs.DurationVar(&cfg.AuditRetention, "audit-retention", cfg.AuditRetention, "how long audit entries are kept (0 keeps forever)")
	fs.StringVar(&cfg.APIVersion, "api-version", cfg.APIVersion, "pin the engine API version instead of negotiating")
	fs.StringVar(configFile, "config", *configFile, "YAML configuration file")
	return fs
}

func (c *Config) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Host = strings.TrimSpace(c.Host)
	c.Port = strings.TrimSpace(c.Port)
	c.CertPath = strings.TrimSpace(c.CertPath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.Path == "" {
		c.Path = "."
	}
	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("container name is required (--name)"))
	}
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if c.TLSVerify && c.CertPath == "" {
		errs = append(errs, errors.New("--tls-verify needs --cert-path"))
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("invalid listen address %q: %w", c.Listen, err))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.KeepAlive <= 0 {
		errs = append(errs, fmt.Errorf("keepalive must be positive, got %s", c.KeepAlive))
	}
	if c.TailLines < 0 {
		errs = append(errs, fmt.Errorf("tail must not be negative, got %d", c.TailLines))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.LogFormat != string(logging.FormatText) && c.LogFormat != string(logging.FormatJSON) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.AuditRetention < 0 {
		errs = append(errs, fmt.Errorf("audit retention must not be negative, got %s", c.AuditRetention))
	}
	return errors.Join(errs...)
}

// EngineAddress is the host:port of the upstream API, for logging.
func (c Config) EngineAddress() string {
	return net.JoinHostPort(c.Host, c.Port)
}
