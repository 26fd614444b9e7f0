package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/powder/internal/cache"
	"github.com/FranksOps/powder/internal/config"
	"github.com/FranksOps/powder/internal/scraper"
	"github.com/FranksOps/powder/internal/storage"
	"github.com/FranksOps/powder/internal/storage/jsonbackend"
	"github.com/FranksOps/powder/internal/storage/postgres"
	"github.com/FranksOps/powder/internal/storage/sqlite"
	"github.com/FranksOps/powder/pkg/proxy"
	"github.com/FranksOps/powder/pkg/ratelimit"
	"github.com/FranksOps/powder/pkg/useragent"
)

// robotsAgent is the product token matched against robots.txt groups.
const robotsAgent = "powder"

// stack is the scrape pipeline shared by serve and scrape.
type stack struct {
	scraper  cache.Scraper
	sitemaps *scraper.SitemapFetcher
	scope    *scraper.Scope
	backend  storage.Backend
}

func (s *stack) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (a *app) buildStack(ctx context.Context) (*stack, error) {
	cfg := a.cfg
	proxies, err := proxy.NewPool(cfg.Proxies, proxy.Config{Cooldown: cfg.ProxyCooldown})
	if err != nil {
		return nil, err
	}
	if n := proxies.Len(); n > 0 {
		a.logger.Info("proxy rotation enabled", "proxies", n)
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.FetchTimeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: true,
		Fingerprint:  cfg.Fingerprint,
		UAPool:       useragent.NewPool(cfg.UserAgents),
		Limiter:      ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		Proxies:      proxies,
	})
	if err != nil {
		return nil, err
	}

	var robots *scraper.RobotsGate
	if cfg.RespectRobots {
		robots = scraper.NewRobotsGate(fetcher, robotsAgent, a.logger)
	}

	st := &stack{
		scraper:  scraper.New(fetcher, robots, a.logger),
		sitemaps: scraper.NewSitemapFetcher(fetcher, a.logger),
		scope:    scraper.NewScope(cfg.AllowedHosts),
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		st.backend = backend
		st.scraper = storage.NewRecorder(st.scraper, backend, a.logger, nil)
		a.logger.Info("snapshot archive enabled", "backend", cfg.StorageBackend)
	}
	return st, nil
}

var errNoArchive = errors.New("no snapshot archive configured (set --storage-backend)")

// openBackend returns nil for the none backend.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.StorageBackend {
	case config.StorageNone, "":
		return nil, nil
	case config.StorageSQLite:
		b, err = sqlite.New(cfg.StorageDSN)
	case config.StoragePostgres:
		b, err = postgres.New(ctx, cfg.StorageDSN)
	case config.StorageJSON:
		b, err = jsonbackend.New(cfg.StorageDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", cfg.StorageBackend, err)
	}
	return b, nil
}
