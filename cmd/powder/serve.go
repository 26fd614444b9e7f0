package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/powder/internal/cache"
	"github.com/FranksOps/powder/internal/config"
	"github.com/FranksOps/powder/internal/server"
	"github.com/FranksOps/powder/internal/warmup"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /scrape?url= from the forecast cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String(config.KeyHTTPAddr, ":8080", "listen address")
	f.String(config.KeyWarmSitemap, "", "sitemap whose pages are scraped into the cache at startup")
	f.String(config.KeyWarmPattern, "", "regexp a sitemap URL must match to be warmed")
	f.Int(config.KeyWarmConcurrency, 4, "concurrent warm-up scrapes")
	f.Duration(config.KeyShutdownTimeout, 15*time.Second, "graceful shutdown limit")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.logger.Error("archive close error", "err", err)
		}
	}()

	forecasts := cache.New(st.scraper, cache.Options{Logger: a.logger})
	srv := server.New(cfg.HTTPAddr, forecasts, st.scope, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.WarmSitemap != "" {
		g.Go(func() error {
			a.warm(gctx, st, forecasts)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			a.logger.Error("http server shutdown error", "err", err)
		}

		drained := make(chan struct{})
		go func() {
			forecasts.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			a.logger.Warn("background refreshes still running at shutdown")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *app) warm(ctx context.Context, st *stack, forecasts *cache.Cache) {
	var pattern *regexp.Regexp
	if a.cfg.WarmPattern != "" {
		// Validated by config.Load.
		pattern = regexp.MustCompile(a.cfg.WarmPattern)
	}

	w := warmup.New(st.sitemaps, scopedGetter{forecasts, st}, warmup.Config{
		Pattern:     pattern,
		Concurrency: a.cfg.WarmConcurrency,
	}, a.logger)

	if _, err := w.Run(ctx, a.cfg.WarmSitemap); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("cache warm-up failed", "sitemap", a.cfg.WarmSitemap, "err", err)
	}
}

// scopedGetter applies the host scope to warm-up URLs, which come from a
// sitemap rather than from a checked request.
type scopedGetter struct {
	forecasts *cache.Cache
	st        *stack
}

func (s scopedGetter) Get(ctx context.Context, rawURL string) (cache.Lookup, error) {
	u, err := s.st.scope.Check(rawURL)
	if err != nil {
		return cache.Lookup{}, err
	}
	return s.forecasts.Get(ctx, u.String())
}
