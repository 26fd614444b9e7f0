// Package proxy rotates upstream fetches across a set of forward proxies and
// benches the ones that keep failing.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrNoHealthyProxy is returned when every proxy is cooling down.
var ErrNoHealthyProxy = errors.New("proxy: no healthy proxy available")

type endpoint struct {
	url       *url.URL
	failures  int
	successes int
	benched   time.Time // zero when healthy
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures in a row before a proxy is benched.
	MaxFailures int
	// Cooldown is how long a benched proxy is skipped.
	Cooldown time.Duration
	Clock    clockwork.Clock
}

// Pool hands out proxies round-robin. It is safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	endpoints []*endpoint
	next      int

	maxFailures int
	cooldown    time.Duration
	clock       clockwork.Clock
}

// NewPool parses rawURLs into a pool. A URL without a scheme is taken as
// http. Blank entries are skipped.
func NewPool(rawURLs []string, cfg Config) (*Pool, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	p := &Pool{maxFailures: cfg.MaxFailures, cooldown: cfg.Cooldown, clock: cfg.Clock}
	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("proxy: invalid url %q", raw)
		}
		p.endpoints = append(p.endpoints, &endpoint{url: u})
	}
	return p, nil
}

// Len returns the number of proxies, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next healthy proxy. A benched proxy becomes eligible again
// once its cooldown has passed.
func (p *Pool) Next() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	for range p.endpoints {
		e := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if !e.benched.IsZero() && !now.Before(e.benched.Add(p.cooldown)) {
			e.benched = time.Time{}
			e.failures = 0
		}
		if e.benched.IsZero() {
			return e.url, nil
		}
	}
	return nil, ErrNoHealthyProxy
}

// Report records the outcome of a request sent through u. Unknown URLs are
// ignored.
func (p *Pool) Report(u *url.URL, ok bool) {
	if u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(u)
	if e == nil {
		return
	}
	if ok {
		e.successes++
		e.failures = 0
		return
	}
	e.failures++
	if e.failures >= p.maxFailures && e.benched.IsZero() {
		e.benched = p.clock.Now()
	}
}

// find must be called with p.mu held.
func (p *Pool) find(u *url.URL) *endpoint {
	target := u.String()
	for _, e := range p.endpoints {
		if e.url.String() == target {
			return e
		}
	}
	return nil
}

type contextKey struct{}

// WithProxy routes requests made with ctx through u when the transport uses
// FromRequest.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromRequest is an http.Transport Proxy func reading the proxy chosen by
// WithProxy. Requests without one go direct.
func FromRequest(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(contextKey{}).(*url.URL)
	return u, nil
}
