package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oxffaa/gopher-parse-sitemap"
)

const maxSitemapDepth = 3

// ErrEmptySitemap is returned when a document lists neither pages nor nested
// sitemaps, which is also how non-XML bodies surface.
var ErrEmptySitemap = errors.New("sitemap lists no locations")

// SitemapFetcher discovers forecast page URLs for cache warm-up.
type SitemapFetcher struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewSitemapFetcher initializes a new SitemapFetcher.
func NewSitemapFetcher(fetcher *Fetcher, logger *slog.Logger) *SitemapFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapFetcher{fetcher: fetcher, logger: logger}
}

// FetchSitemap returns the page locations listed by sitemapURL. Sitemap
// indexes are followed up to maxSitemapDepth levels; each nested sitemap is
// read once and failing nested sitemaps are skipped with a warning.
func (s *SitemapFetcher) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	w := &sitemapWalk{SitemapFetcher: s, seen: make(map[string]struct{})}
	return w.visit(ctx, sitemapURL, 0)
}

type sitemapWalk struct {
	*SitemapFetcher
	seen map[string]struct{}
}

func (w *sitemapWalk) visit(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	w.seen[sitemapURL] = struct{}{}
	w.logger.Debug("fetching sitemap", "url", sitemapURL, "depth", depth)

	body, err := w.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	pages, nested, err := parseSitemap(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sitemapURL, err)
	}
	if len(nested) > 0 && depth >= maxSitemapDepth {
		w.logger.Warn("sitemap index too deep, not following", "url", sitemapURL, "depth", depth)
		nested = nil
	}

	for _, next := range nested {
		if _, ok := w.seen[next]; ok {
			continue
		}
		found, err := w.visit(ctx, next, depth+1)
		if err != nil {
			w.logger.Warn("failed to fetch nested sitemap", "url", next, "err", err)
			continue
		}
		pages = append(pages, found...)
	}
	return pages, nil
}

// parseSitemap reads body as a urlset, falling back to a sitemap index.
func parseSitemap(body []byte) (pages, nested []string, err error) {
	parseErr := sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		pages = append(pages, e.GetLocation())
		return nil
	})
	if parseErr == nil && len(pages) > 0 {
		return pages, nil, nil
	}

	indexErr := sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	})
	switch {
	case indexErr == nil && len(nested) > 0:
		return nil, nested, nil
	case parseErr != nil:
		return nil, nil, parseErr
	case indexErr != nil:
		return nil, nil, indexErr
	default:
		return nil, nil, ErrEmptySitemap
	}
}
