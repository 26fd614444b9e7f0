package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Page is the part of an upstream response inspected for bot protection.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Signature describes how one bot-protection vendor answers a blocked client.
// A page matches when its status is listed and any of the server substrings,
// header names or body groups match. Every marker of a body group must occur.
type Signature struct {
	Source   string
	Statuses []int
	Server   []string
	Headers  []string
	Body     [][]string
}

// DefaultSignatures covers the vendors commonly seen in front of forecast sites.
var DefaultSignatures = []Signature{
	{
		Source:   "Cloudflare",
		Statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
		Server:   []string{"cloudflare"},
		Body: [][]string{
			{"cf-browser-verification"},
			{"cloudflare-nginx"},
			{"cf-turnstile"},
			{"Attention Required! | Cloudflare"},
		},
	},
	{
		Source:   "Akamai",
		Statuses: []int{http.StatusForbidden},
		Server:   []string{"akamai"},
		Body:     [][]string{{"Reference #", "Access Denied"}},
	},
	{
		Source:   "DataDome",
		Statuses: []int{http.StatusForbidden},
		Server:   []string{"datadome"},
		Headers:  []string{"X-DataDome", "X-DataDome-Response"},
		Body:     [][]string{{"geo.captcha-delivery.com"}, {"datadome"}},
	},
	{
		Source:   "PerimeterX",
		Statuses: []int{http.StatusForbidden},
		Headers:  []string{"X-Px-Captcha"},
		Body:     [][]string{{"client.perimeterx.net"}, {"px-captcha"}, {"_pxBlock"}},
	},
}

// Detect returns the vendor of the first signature matching p.
func Detect(p Page, sigs []Signature) (source string, detected bool) {
	for _, sig := range sigs {
		if sig.matches(p) {
			return sig.Source, true
		}
	}
	return "", false
}

func (s Signature) matches(p Page) bool {
	if !slices.Contains(s.Statuses, p.StatusCode) {
		return false
	}

	server := strings.ToLower(p.Header.Get("Server"))
	for _, needle := range s.Server {
		if server != "" && strings.Contains(server, needle) {
			return true
		}
	}

	for _, name := range s.Headers {
		if p.Header.Get(name) != "" {
			return true
		}
	}

	for _, group := range s.Body {
		if containsAll(p.Body, group) {
			return true
		}
	}
	return false
}

func containsAll(body []byte, markers []string) bool {
	for _, m := range markers {
		if !bytes.Contains(body, []byte(m)) {
			return false
		}
	}
	return len(markers) > 0
}
