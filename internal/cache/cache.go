// Package cache serves forecast results stale-while-revalidate: a URL seen
// before is answered from memory at once while a background scrape replaces
// the stored result for the next caller.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/FranksOps/powder/internal/forecast"
	"github.com/FranksOps/powder/internal/metrics"
)

// Scraper produces a fresh Result for a URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*forecast.Result, error)
}

// ScraperFunc adapts a function to Scraper.
type ScraperFunc func(ctx context.Context, url string) (*forecast.Result, error)

func (f ScraperFunc) Scrape(ctx context.Context, url string) (*forecast.Result, error) {
	return f(ctx, url)
}

// Options configures a Cache.
type Options struct {
	Logger *slog.Logger
	// Clock stamps entries; defaults to the real clock.
	Clock clockwork.Clock
}

// Lookup is the answer to Get. Cached reports whether Result came from a
// previous scrape.
type Lookup struct {
	Cached    bool
	Result    *forecast.Result
	UpdatedAt time.Time
}

type entry struct {
	result    *forecast.Result
	updatedAt time.Time
}

// Cache maps URLs to their last successful Result. Entries are never evicted;
// a failed scrape never removes or alters one.
type Cache struct {
	scraper Scraper
	logger  *slog.Logger
	clock   clockwork.Clock

	mu      sync.RWMutex
	entries map[string]entry

	group    singleflight.Group
	inflight sync.WaitGroup
}

// New creates an empty Cache backed by scraper.
func New(scraper Scraper, opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Cache{
		scraper: scraper,
		logger:  opts.Logger,
		clock:   opts.Clock,
		entries: make(map[string]entry),
	}
}

// Get returns the Result for url. On a miss it scrapes and stores a success;
// errors are returned and nothing is stored. Concurrent misses share one
// scrape that runs without the callers' cancellation, so a caller that gives
// up returns ctx.Err() while the others still get the result. On a hit it
// returns the stored Result and starts a background refresh, at most one per
// URL at a time.
func (c *Cache) Get(ctx context.Context, url string) (Lookup, error) {
	if e, ok := c.load(url); ok {
		metrics.RecordLookup(true)
		c.refresh(ctx, url)
		return Lookup{Cached: true, Result: e.result, UpdatedAt: e.updatedAt}, nil
	}

	metrics.RecordLookup(false)
	shared := context.WithoutCancel(ctx)
	ch := c.do("miss:"+url, func() (any, error) {
		res, err := c.scraper.Scrape(shared, url)
		if err != nil {
			return nil, err
		}
		return c.store(url, res), nil
	})

	select {
	case <-ctx.Done():
		return Lookup{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Lookup{}, r.Err
		}
		e := r.Val.(entry)
		return Lookup{Cached: false, Result: e.result, UpdatedAt: e.updatedAt}, nil
	}
}

// Peek returns the stored entry for url without triggering a refresh.
func (c *Cache) Peek(url string) (Lookup, bool) {
	e, ok := c.load(url)
	if !ok {
		return Lookup{}, false
	}
	return Lookup{Cached: true, Result: e.result, UpdatedAt: e.updatedAt}, true
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Wait blocks until every scrape started so far has finished, including
// refreshes and misses whose callers went away.
func (c *Cache) Wait() {
	c.inflight.Wait()
}

// refresh runs detached from the caller's cancellation so the response that
// triggered it can complete first. The refresh has joined or started the
// in-flight call for url by the time refresh returns.
func (c *Cache) refresh(ctx context.Context, url string) {
	ctx = context.WithoutCancel(ctx)
	c.do("refresh:"+url, func() (any, error) {
		res, err := c.scraper.Scrape(ctx, url)
		metrics.RecordRefresh(err)
		if err != nil {
			c.logger.Warn("cache refresh failed", "url", url, "err", err)
			return nil, err
		}
		c.store(url, res)
		c.logger.Debug("cache refreshed", "url", url)
		return nil, nil
	})
}

// do joins or starts the call for key and counts it until it completes.
func (c *Cache) do(key string, fn func() (any, error)) <-chan singleflight.Result {
	c.inflight.Add(1)
	ch := c.group.DoChan(key, fn)
	out := make(chan singleflight.Result, 1)
	go func() {
		defer c.inflight.Done()
		out <- <-ch
	}()
	return out
}

func (c *Cache) load(url string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e, ok
}

func (c *Cache) store(url string, res *forecast.Result) entry {
	e := entry{result: res, updatedAt: c.clock.Now()}
	c.mu.Lock()
	c.entries[url] = e
	n := len(c.entries)
	c.mu.Unlock()
	metrics.CacheEntries.Set(float64(n))
	return e
}
