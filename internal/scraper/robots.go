package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGate checks forecast URLs against their host's robots.txt. Rules are
// fetched once per host and kept for the gate's lifetime. Hosts whose
// robots.txt cannot be read are allowed and retried on the next check.
type RobotsGate struct {
	fetcher   *Fetcher
	userAgent string
	logger    *slog.Logger

	mu    sync.Mutex
	rules map[string]*robotstxt.RobotsData
}

// NewRobotsGate creates a gate matching rules for userAgent ("*" when empty).
func NewRobotsGate(fetcher *Fetcher, userAgent string, logger *slog.Logger) *RobotsGate {
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = "*"
	}
	return &RobotsGate{
		fetcher:   fetcher,
		userAgent: userAgent,
		logger:    logger,
		rules:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether targetURL may be fetched.
func (g *RobotsGate) Allowed(ctx context.Context, targetURL string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data := g.rulesFor(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(g.userAgent).Test(path), nil
}

// Sitemaps returns the sitemap URLs advertised by origin's robots.txt.
// origin is scheme and host, e.g. "https://example.com".
func (g *RobotsGate) Sitemaps(ctx context.Context, origin string) []string {
	data := g.rulesFor(ctx, origin)
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

// rulesFor serializes robots.txt fetches; forecast traffic touches one or two
// hosts, so a single lock is enough.
func (g *RobotsGate) rulesFor(ctx context.Context, origin string) *robotstxt.RobotsData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if data, ok := g.rules[origin]; ok {
		return data
	}

	data, err := g.load(ctx, origin)
	if err != nil {
		g.logger.Debug("robots.txt unavailable, allowing", "host", origin, "err", err)
		return nil
	}
	g.rules[origin] = data
	return data
}

func (g *RobotsGate) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	resp, err := g.fetcher.get(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
