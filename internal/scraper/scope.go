package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// Scope restricts scraping to a set of hosts and their subdomains. An empty
// Scope allows every http(s) URL.
type Scope struct {
	domains []string
}

// NewScope builds a Scope from host names. Blank entries are ignored.
func NewScope(domains []string) *Scope {
	s := &Scope{}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			s.domains = append(s.domains, d)
		}
	}
	return s
}

// Check parses rawURL and verifies it is an absolute http(s) URL on an
// allowed host. The returned URL has its fragment removed.
func (s *Scope) Check(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	u.Fragment = ""

	if !s.allows(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

func (s *Scope) allows(host string) bool {
	if s == nil || len(s.domains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range s.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
