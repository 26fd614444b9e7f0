package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/powder/internal/forecast"
)

type scrapeOutput struct {
	URL     string           `json:"url"`
	Success bool             `json:"success"`
	Data    *forecast.Result `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func newScrapeCmd(a *app) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "scrape <url>...",
		Short: "Scrape forecast pages once and print the results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scrape(cmd.Context(), cmd.OutOrStdout(), args, concurrency)
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "pages scraped at once")
	return cmd
}

func (a *app) scrape(ctx context.Context, out io.Writer, urls []string, concurrency int) error {
	st, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	results := make([]scrapeOutput, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, raw := range urls {
		g.Go(func() error {
			results[i] = a.scrapeOne(gctx, st, raw)
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scrapes failed", failed, len(urls))
	}
	return nil
}

func (a *app) scrapeOne(ctx context.Context, st *stack, raw string) scrapeOutput {
	out := scrapeOutput{URL: raw}

	u, err := st.scope.Check(raw)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.URL = u.String()

	res, err := st.scraper.Scrape(ctx, out.URL)
	if err != nil {
		a.logger.Warn("scrape failed", "url", out.URL, "err", err)
		out.Error = err.Error()
		return out
	}
	out.Success = true
	out.Data = res
	return out
}
