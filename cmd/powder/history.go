package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/powder/internal/report"
	"github.com/FranksOps/powder/internal/storage"
)

type historyOptions struct {
	url        string
	failedOnly bool
	since      time.Duration
	limit      int
	format     string
}

func newHistoryCmd(a *app) *cobra.Command {
	var opts historyOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarize archived scrape snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.history(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "only snapshots of this URL")
	f.BoolVar(&opts.failedOnly, "failed", false, "only failed scrapes")
	f.DurationVar(&opts.since, "since", 0, "only snapshots newer than this, e.g. 24h")
	f.IntVar(&opts.limit, "limit", 0, "newest N snapshots (0 for all)")
	f.StringVar(&opts.format, "format", "text", "output format: text or json")
	return cmd
}

func (a *app) history(ctx context.Context, out io.Writer, opts historyOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	backend, err := openBackend(ctx, a.cfg)
	if err != nil {
		return err
	}
	if backend == nil {
		return errNoArchive
	}
	defer backend.Close()

	filter := storage.Filter{URL: opts.url, Limit: opts.limit}
	if opts.failedOnly {
		filter.Failed = &opts.failedOnly
	}
	if opts.since > 0 {
		since := time.Now().Add(-opts.since)
		filter.Since = &since
	}

	snaps, err := backend.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("query archive: %w", err)
	}

	summary := report.GenerateSummary(snaps)
	if opts.format == "json" {
		return report.WriteJSON(out, summary)
	}
	return report.WriteText(out, summary)
}
