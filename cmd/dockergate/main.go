// dockergate serves a small control page and API for one container behind a
// remote engine API: status, start/stop, cached and live logs with network
// endpoints masked.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rusenback/dockergate/internal/config"
	"github.com/rusenback/dockergate/internal/docker"
	"github.com/rusenback/dockergate/internal/logcache"
	"github.com/rusenback/dockergate/internal/logging"
	"github.com/rusenback/dockergate/internal/poller"
	"github.com/rusenback/dockergate/internal/server"
	"github.com/rusenback/dockergate/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "dockergate: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("dockergate stopped")
	}
	logger.Info("dockergate stopped")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	log := logger.WithField("container", cfg.Name)

	client, err := docker.NewClient(ctx, docker.Config{
		Host:       cfg.Host,
		Port:       cfg.Port,
		APIVersion: cfg.APIVersion,
		TLSVerify:  cfg.TLSVerify,
		CertPath:   cfg.CertPath,
	})
	if err != nil {
		return fmt.Errorf("connect to engine at %s: %w", cfg.EngineAddress(), err)
	}
	defer client.Close()
	log.WithField("engine", cfg.EngineAddress()).Info("engine reachable")

	var audit server.AuditStore
	if cfg.AuditDB != "" {
		store, err := storage.Open(cfg.AuditDB, storage.Options{
			Retention: cfg.AuditRetention,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer store.Close()
		audit = store
	}

	cache := logcache.New()
	poll := poller.New(client, cache, poller.Config{
		Container: cfg.Name,
		Interval:  cfg.PollInterval,
	}, logrus.NewEntry(logger))

	srv, err := server.New(client, cache, server.Config{
		Addr:        cfg.Listen,
		Container:   cfg.Name,
		StaticDir:   cfg.Path,
		TailLines:   cfg.TailLines,
		KeepAlive:   cfg.KeepAlive,
		CORSOrigins: cfg.CORSOrigins,
		Audit:       audit,
		Logger:      logrus.NewEntry(logger),
	})
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return poll.Run(ctx)
	})
	group.Go(func() error {
		return srv.Run(ctx, nil)
	})
	return group.Wait()
}
