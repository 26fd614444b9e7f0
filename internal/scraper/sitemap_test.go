package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func xmlHandler(body func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body()))
	}
}

func TestSitemapFetcher_FlatSitemap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", xmlHandler(func() string {
		return `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <url>
      <loc>http://example.com/resorts/alpha/forecasts/latest/top</loc>
      <lastmod>2023-01-01</lastmod>
   </url>
   <url>
      <loc>http://example.com/resorts/beta/forecasts/latest/top</loc>
   </url>
</urlset>`
	}))

	ts := httptest.NewServer(mux)
	defer ts.Close()

	urls, err := NewSitemapFetcher(newTestFetcher(t), nil).FetchSitemap(context.Background(), ts.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(urls) != 2 {
		t.Fatalf("expected 2 URLs, got %d", len(urls))
	}
	if urls[0] != "http://example.com/resorts/alpha/forecasts/latest/top" {
		t.Errorf("unexpected first url %s", urls[0])
	}
}

func TestSitemapFetcher_SitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	var baseURL string

	mux.HandleFunc("/sitemap_index.xml", xmlHandler(func() string {
		return `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <sitemap><loc>` + baseURL + `/sitemap1.xml</loc></sitemap>
   <sitemap><loc>` + baseURL + `/sitemap2.xml</loc></sitemap>
   <sitemap><loc>` + baseURL + `/missing.xml</loc></sitemap>
</sitemapindex>`
	}))
	mux.HandleFunc("/sitemap1.xml", xmlHandler(func() string {
		return `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <url><loc>http://example.com/s1-1</loc></url>
</urlset>`
	}))
	mux.HandleFunc("/sitemap2.xml", xmlHandler(func() string {
		return `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <url><loc>http://example.com/s2-1</loc></url>
   <url><loc>http://example.com/s2-2</loc></url>
</urlset>`
	}))

	ts := httptest.NewServer(mux)
	defer ts.Close()
	baseURL = ts.URL

	urls, err := NewSitemapFetcher(newTestFetcher(t), nil).FetchSitemap(context.Background(), ts.URL+"/sitemap_index.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]bool{
		"http://example.com/s1-1": true,
		"http://example.com/s2-1": true,
		"http://example.com/s2-2": true,
	}
	if len(urls) != len(expected) {
		t.Fatalf("expected %d URLs from nested sitemaps, got %v", len(expected), urls)
	}
	for _, u := range urls {
		if !expected[u] {
			t.Errorf("unexpected URL parsed: %s", u)
		}
	}
}

func TestSitemapFetcher_SelfReferencingIndex(t *testing.T) {
	mux := http.NewServeMux()
	var baseURL string
	mux.HandleFunc("/loop.xml", xmlHandler(func() string {
		return `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
   <sitemap><loc>` + baseURL + `/loop.xml</loc></sitemap>
</sitemapindex>`
	}))

	ts := httptest.NewServer(mux)
	defer ts.Close()
	baseURL = ts.URL

	urls, err := NewSitemapFetcher(newTestFetcher(t), nil).FetchSitemap(context.Background(), ts.URL+"/loop.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("expected no URLs, got %v", urls)
	}
}

func TestSitemapFetcher_InvalidXML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", xmlHandler(func() string { return `this is not xml` }))

	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := NewSitemapFetcher(newTestFetcher(t), nil).FetchSitemap(context.Background(), ts.URL+"/sitemap.xml")
	if err == nil {
		t.Errorf("expected parsing error")
	}
}
