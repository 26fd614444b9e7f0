package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/powder/internal/forecast"
)

// Scraper turns a forecast page URL into a Result: fetch, parse, extract.
type Scraper struct {
	fetcher   *Fetcher
	robots    *RobotsGate
	extractor *forecast.Extractor
	logger    *slog.Logger
}

// New creates a Scraper. robots may be nil to skip robots.txt checks.
func New(fetcher *Fetcher, robots *RobotsGate, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		fetcher:   fetcher,
		robots:    robots,
		extractor: forecast.NewExtractor(logger),
		logger:    logger,
	}
}

// Scrape downloads targetURL and extracts its forecast table. Fetch failures
// and robots denials are *FetchError; markup that cannot be loaded wraps
// ErrUnparseable.
func (s *Scraper) Scrape(ctx context.Context, targetURL string) (*forecast.Result, error) {
	if s.robots != nil {
		allowed, err := s.robots.Allowed(ctx, targetURL)
		if err != nil {
			return nil, &FetchError{URL: targetURL, Err: err}
		}
		if !allowed {
			return nil, &FetchError{URL: targetURL, Reason: "disallowed by robots.txt"}
		}
	}

	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	res := s.extractor.Extract(doc)
	s.logger.Debug("forecast scraped",
		"url", targetURL,
		"bytes", len(body),
		"duration", time.Since(start),
		"max_snow_block", res.MaxSnowBlockLength,
	)
	return res, nil
}
