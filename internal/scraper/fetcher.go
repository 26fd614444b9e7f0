package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/powder/internal/bypass"
	"github.com/FranksOps/powder/internal/fingerprint"
	"github.com/FranksOps/powder/internal/metrics"
	"github.com/FranksOps/powder/pkg/httpclient"
	"github.com/FranksOps/powder/pkg/proxy"
	"github.com/FranksOps/powder/pkg/ratelimit"
	"github.com/FranksOps/powder/pkg/useragent"
)

const defaultMaxBodyBytes = 10 << 20

// FetchConfig configures how forecast pages are downloaded.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify is for TLS test servers only.
	InsecureSkipVerify bool
	UAPool             *useragent.Pool
	Limiter            *ratelimit.Limiter
	// Proxies rotates requests across forward proxies. Nil fetches direct.
	Proxies *proxy.Pool
	// Signatures identify bot-challenge pages; nil uses bypass.DefaultSignatures.
	Signatures   []bypass.Signature
	MaxBodyBytes int64
}

// Fetcher downloads pages through a single fingerprinted client, so cookies
// and pooled connections persist for its lifetime.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewFetcher initializes a Fetcher, filling zero config values with defaults.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Signatures == nil {
		cfg.Signatures = bypass.DefaultSignatures
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	transport, err := fingerprint.Transport(fingerprint.Config{
		Profile:            cfg.Fingerprint,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Proxy:              proxy.FromRequest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.5"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch downloads targetURL and returns the body of a successful response.
// Transport failures, bot challenges and non-2xx statuses are *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	resp, err := f.get(ctx, targetURL)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}

	page := bypass.Page{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	if source, blocked := bypass.Detect(page, f.config.Signatures); blocked {
		return nil, &FetchError{
			URL:        targetURL,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("blocked by %s (status %d)", source, resp.StatusCode),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: targetURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// get performs a rate-limited GET and returns the response whatever its
// status. It only fails when no complete response was read.
func (f *Fetcher) get(ctx context.Context, targetURL string) (*response, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	host := ""
	if u, err := url.Parse(targetURL); err == nil {
		host = u.Hostname()
	}

	var via *url.URL
	if f.config.Proxies != nil && f.config.Proxies.Len() > 0 {
		u, err := f.config.Proxies.Next()
		if err != nil {
			return nil, err
		}
		via = u
		ctx = proxy.WithProxy(ctx, via)
	}

	start := time.Now()
	resp, err := f.client.Get(ctx, targetURL, http.Header{"User-Agent": {f.config.UAPool.Next()}})
	if err != nil {
		metrics.RecordFetch(host, 0, time.Since(start), 0)
		f.config.Proxies.Report(via, false)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusProxyAuthRequired, http.StatusTooManyRequests:
		f.config.Proxies.Report(via, false)
	default:
		f.config.Proxies.Report(via, true)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	metrics.RecordFetch(host, resp.StatusCode, time.Since(start), len(body))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrBodyTooLarge, f.config.MaxBodyBytes)
	}

	return &response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
