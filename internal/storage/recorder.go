package storage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/FranksOps/powder/internal/forecast"
)

// Scraper is the operation a Recorder wraps.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*forecast.Result, error)
}

// Recorder saves a Snapshot for every scrape passing through it. Archive
// failures are logged and never change the scrape's outcome.
type Recorder struct {
	next    Scraper
	backend Backend
	logger  *slog.Logger
	clock   clockwork.Clock
}

// NewRecorder wraps next so each call is archived in backend. A nil clock
// uses the real clock.
func NewRecorder(next Scraper, backend Backend, logger *slog.Logger, clock clockwork.Clock) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{next: next, backend: backend, logger: logger, clock: clock}
}

func (r *Recorder) Scrape(ctx context.Context, url string) (*forecast.Result, error) {
	start := r.clock.Now()
	res, err := r.next.Scrape(ctx, url)

	snap := &Snapshot{
		ID:        uuid.NewString(),
		URL:       url,
		Result:    res,
		Duration:  r.clock.Since(start),
		CreatedAt: start.UTC(),
	}
	if err != nil {
		snap.Result = nil
		snap.Error = err.Error()
	}

	// The archive write must not be cut short by the caller going away.
	if saveErr := r.backend.Save(context.WithoutCancel(ctx), snap); saveErr != nil {
		r.logger.Warn("failed to archive snapshot", "url", url, "err", saveErr)
	}
	return res, err
}
