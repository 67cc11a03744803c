// Package poller refreshes the log cache from the upstream engine on a fixed
// interval.
package poller

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/rusenback/dockergate/internal/logcache"
	"github.com/rusenback/dockergate/internal/logging"
	"github.com/rusenback/dockergate/internal/redact"
	"github.com/rusenback/dockergate/internal/stream"
)

// DefaultInterval between two polls.
const DefaultInterval = 10 * time.Second

// LogFetcher returns the stdout log body of a container. tail <= 0 means all.
type LogFetcher interface {
	ContainerLogs(ctx context.Context, id string, tail int) ([]byte, error)
}

type Config struct {
	Container string
	Interval  time.Duration
}

// Poller is the only writer of the cache.
type Poller struct {
	fetcher LogFetcher
	cache   *logcache.Cache
	cfg     Config
	logger  *logrus.Entry
}

func New(fetcher LogFetcher, cache *logcache.Cache, cfg Config, logger *logrus.Entry) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	var base logrus.FieldLogger = logrus.StandardLogger()
	if logger != nil {
		base = logger
	}
	return &Poller{
		fetcher: fetcher,
		cache:   cache,
		cfg:     cfg,
		logger:  logging.WithComponent(base, "poller").WithField("container", cfg.Container),
	}
}

// Run polls once immediately and then every interval until ctx is done.
// Failures are logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.WithField("interval", p.cfg.Interval).Info("poller started")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		_ = p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches the full log, redacts it and publishes it. On error the
// cache keeps its previous snapshot.
func (p *Poller) PollOnce(ctx context.Context) error {
	started := time.Now()

	body, err := p.fetcher.ContainerLogs(ctx, p.cfg.Container, 0)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WithError(err).Warn("log poll failed, keeping previous snapshot")
		}
		return err
	}

	raw := stream.DecodeLossy(body)
	p.cache.Update(redact.Redact(raw))

	p.logger.WithFields(logrus.Fields{
		"size":      humanize.Bytes(uint64(len(body))),
		"endpoints": redact.Count(raw),
		"duration":  time.Since(started).Round(time.Millisecond),
	}).Debug("log snapshot published")
	return nil
}
