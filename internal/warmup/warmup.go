// Package warmup fills the forecast cache from a sitemap so the first user
// request for a page is already a hit.
package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/powder/internal/cache"
)

// Discoverer lists candidate page URLs.
type Discoverer interface {
	FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error)
}

// Getter loads one URL into the cache.
type Getter interface {
	Get(ctx context.Context, url string) (cache.Lookup, error)
}

// Config controls which discovered URLs are warmed and how many at once.
type Config struct {
	// Pattern keeps only matching URLs; nil keeps all.
	Pattern     *regexp.Regexp
	Concurrency int
}

// Stats reports a warm-up run.
type Stats struct {
	Discovered int
	Matched    int
	Warmed     int
	Failed     int
}

// Warmer scrapes sitemap pages into the cache.
type Warmer struct {
	discoverer Discoverer
	cache      Getter
	cfg        Config
	logger     *slog.Logger
}

// New creates a Warmer. Concurrency below 1 is treated as 1.
func New(d Discoverer, c Getter, cfg Config, logger *slog.Logger) *Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Warmer{discoverer: d, cache: c, cfg: cfg, logger: logger}
}

// Run discovers URLs from sitemapURL and loads each match. Individual page
// failures are logged and counted; only discovery failure or cancellation is
// returned as an error.
func (w *Warmer) Run(ctx context.Context, sitemapURL string) (Stats, error) {
	var stats Stats

	urls, err := w.discoverer.FetchSitemap(ctx, sitemapURL)
	if err != nil {
		return stats, fmt.Errorf("discover %s: %w", sitemapURL, err)
	}
	stats.Discovered = len(urls)

	seen := make(map[string]struct{}, len(urls))
	targets := urls[:0:0]
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if w.cfg.Pattern == nil || w.cfg.Pattern.MatchString(u) {
			targets = append(targets, u)
		}
	}
	stats.Matched = len(targets)
	w.logger.Info("cache warm-up starting", "sitemap", sitemapURL, "discovered", stats.Discovered, "matched", stats.Matched)

	var warmed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	for _, u := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := w.cache.Get(gctx, u); err != nil {
				failed.Add(1)
				w.logger.Warn("warm-up scrape failed", "url", u, "err", err)
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats.Warmed = int(warmed.Load())
	stats.Failed = int(failed.Load())
	w.logger.Info("cache warm-up finished", "warmed", stats.Warmed, "failed", stats.Failed)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}
