// Package storage archives every forecast scrape so extraction drift can be
// examined after the fact. The archive is write-mostly; the cache never reads
// from it.
package storage

import (
	"context"
	"time"

	"github.com/FranksOps/powder/internal/forecast"
)

// Snapshot is the outcome of one scrape of one URL.
type Snapshot struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	Result    *forecast.Result `json:"result,omitempty"`
	Duration  time.Duration    `json:"duration"`
	CreatedAt time.Time        `json:"createdAt"`
	// Error is non-empty when the scrape failed; Result is nil then.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the scrape produced no Result.
func (s *Snapshot) Failed() bool {
	return s.Error != ""
}

// Filter selects snapshots, newest first.
type Filter struct {
	URL    string
	Failed *bool
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying snapshots.
type Backend interface {
	Save(ctx context.Context, snap *Snapshot) error
	Query(ctx context.Context, filter Filter) ([]*Snapshot, error)
	Close() error
}
