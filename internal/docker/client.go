package docker

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/client"
)

// Config sisältää Docker client konfiguraation
type Config struct {
	Host       string
	Port       string
	APIVersion string // empty = negotiate with the engine
	TLSVerify  bool
	CertPath   string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:    "127.0.0.1",
		Port:    "2375",
		Timeout: 30 * time.Second,
	}
}

// DaemonHost returns the engine address in the form the SDK expects.
func (cfg Config) DaemonHost() string {
	return "tcp://" + net.JoinHostPort(cfg.Host, cfg.Port)
}

// Client wrappaa Docker API clientin
type Client struct {
	cli *client.Client
}

// NewClient luo uuden Docker clientin ja tarkistaa yhteyden pingillä
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid engine port %q: %w", cfg.Port, err)
	}

	opts := []client.Opt{
		client.WithHost(cfg.DaemonHost()),
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	// With a TLS transport the SDK switches the tcp:// host to https.
	if cfg.TLSVerify {
		opts = append(opts, client.WithTLSClientConfig(
			filepath.Join(cfg.CertPath, "ca.pem"),
			filepath.Join(cfg.CertPath, "cert.pem"),
			filepath.Join(cfg.CertPath, "key.pem"),
		))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, classify(err)
	}

	return &Client{cli: cli}, nil
}

// Close sulkee yhteyden
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}
