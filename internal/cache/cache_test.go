package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/powder/internal/forecast"
)

// fakeScraper returns a distinct Result per call, or the queued errors first.
type fakeScraper struct {
	calls atomic.Int32

	mu   sync.Mutex
	errs []error
	gate chan struct{}
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*forecast.Result, error) {
	n := f.calls.Add(1)

	f.mu.Lock()
	gate := f.gate
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &forecast.Result{
		SnowBlocks:         []forecast.Block{{forecast.Numeric(float64(n))}},
		MaxSnowBlockLength: 1,
	}, nil
}

func (f *fakeScraper) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
}

func newTestCache(s Scraper, clock clockwork.Clock) *Cache {
	return New(s, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  clock,
	})
}

const pageURL = "https://example.com/resorts/alpha/forecasts/latest/top"

func TestGet_MissThenHit(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC))
	scraper := &fakeScraper{}
	c := newTestCache(scraper, clock)
	ctx := context.Background()

	first, err := c.Get(ctx, pageURL)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, clock.Now(), first.UpdatedAt)
	assert.Equal(t, 1, c.Len())

	clock.Advance(time.Minute)

	second, err := c.Get(ctx, pageURL)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Same(t, first.Result, second.Result)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	c.Wait()
	assert.Equal(t, int32(2), scraper.calls.Load(), "hit should trigger one background refresh")

	refreshed, ok := c.Peek(pageURL)
	require.True(t, ok)
	assert.NotSame(t, first.Result, refreshed.Result)
	assert.Equal(t, forecast.Numeric(2), refreshed.Result.SnowBlocks[0][0])
	assert.Equal(t, clock.Now(), refreshed.UpdatedAt)
}

func TestGet_FailedRefreshKeepsEntry(t *testing.T) {
	scraper := &fakeScraper{}
	c := newTestCache(scraper, clockwork.NewFakeClock())
	ctx := context.Background()

	first, err := c.Get(ctx, pageURL)
	require.NoError(t, err)

	scraper.failNext(errors.New("upstream down"))
	second, err := c.Get(ctx, pageURL)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	c.Wait()

	after, ok := c.Peek(pageURL)
	require.True(t, ok)
	assert.Same(t, first.Result, after.Result)
	assert.Equal(t, first.UpdatedAt, after.UpdatedAt)

	third, err := c.Get(ctx, pageURL)
	require.NoError(t, err)
	assert.Same(t, first.Result, third.Result)
	c.Wait()
}

func TestGet_MissErrorStoresNothing(t *testing.T) {
	scraper := &fakeScraper{}
	scraper.failNext(errors.New("status 503"))
	c := newTestCache(scraper, clockwork.NewFakeClock())

	_, err := c.Get(context.Background(), pageURL)
	require.EqualError(t, err, "status 503")
	assert.Equal(t, 0, c.Len())
	_, ok := c.Peek(pageURL)
	assert.False(t, ok)

	lookup, err := c.Get(context.Background(), pageURL)
	require.NoError(t, err)
	assert.False(t, lookup.Cached, "a failed miss must leave the key absent")
}

func TestGet_ConcurrentRefreshesCoalesce(t *testing.T) {
	scraper := &fakeScraper{}
	c := newTestCache(scraper, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := c.Get(ctx, pageURL)
	require.NoError(t, err)

	gate := make(chan struct{})
	scraper.mu.Lock()
	scraper.gate = gate
	scraper.mu.Unlock()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lookup, err := c.Get(ctx, pageURL)
			assert.NoError(t, err)
			assert.True(t, lookup.Cached)
		}()
	}
	// Each Get has joined the refresh in flight before returning, and that
	// refresh cannot finish until the gate opens.
	wg.Wait()
	close(gate)
	c.Wait()

	assert.Equal(t, int32(2), scraper.calls.Load(), "refreshes for one URL should be de-duplicated")
}

func TestGet_CancelledMissDoesNotFailOthers(t *testing.T) {
	gate := make(chan struct{})
	scraper := &fakeScraper{gate: gate}
	c := newTestCache(ScraperFunc(func(ctx context.Context, url string) (*forecast.Result, error) {
		res, err := scraper.Scrape(ctx, url)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return res, err
	}), clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, pageURL)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return scraper.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan Lookup, 1)
	go func() {
		lookup, err := c.Get(context.Background(), pageURL)
		assert.NoError(t, err)
		second <- lookup
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(gate)
	lookup := <-second
	require.NotNil(t, lookup.Result)
	assert.Equal(t, forecast.Numeric(1), lookup.Result.SnowBlocks[0][0])
	c.Wait()

	_, ok := c.Peek(pageURL)
	assert.True(t, ok, "the shared scrape must complete after its first caller left")
}

func TestGet_RefreshOutlivesRequestContext(t *testing.T) {
	scraper := &fakeScraper{}
	c := newTestCache(ScraperFunc(func(ctx context.Context, url string) (*forecast.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return scraper.Scrape(ctx, url)
	}), clockwork.NewFakeClock())

	_, err := c.Get(context.Background(), pageURL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = c.Get(ctx, pageURL)
	require.NoError(t, err)
	cancel()
	c.Wait()

	got, ok := c.Peek(pageURL)
	require.True(t, ok)
	assert.Equal(t, forecast.Numeric(2), got.Result.SnowBlocks[0][0])
}

func TestCache_SeparateURLs(t *testing.T) {
	c := newTestCache(&fakeScraper{}, clockwork.NewFakeClock())

	for _, u := range []string{pageURL, pageURL + "?units=metric", "https://example.com/other"} {
		lookup, err := c.Get(context.Background(), u)
		require.NoError(t, err)
		assert.False(t, lookup.Cached, u)
	}
	assert.Equal(t, 3, c.Len())
}
