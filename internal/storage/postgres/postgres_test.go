package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/powder/internal/forecast"
	"github.com/FranksOps/powder/internal/storage"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if POWDER_TEST_PG_DSN is set
	dsn := os.Getenv("POWDER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: POWDER_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	now := time.Now().UTC()
	url := "https://example-pg.com/" + uuid.NewString()

	snap := &storage.Snapshot{
		ID:  uuid.NewString(),
		URL: url,
		Result: &forecast.Result{
			RainBlocks:         []forecast.Block{{forecast.Numeric(2.5)}},
			MaxSnowBlockLength: 0,
		},
		Duration:  50 * time.Millisecond,
		CreatedAt: now,
	}
	failed := &storage.Snapshot{
		ID:        uuid.NewString(),
		URL:       url,
		CreatedAt: now.Add(-time.Hour),
		Error:     "status 503",
	}
	for _, s := range []*storage.Snapshot{snap, failed} {
		if err := b.Save(ctx, s); err != nil {
			t.Fatalf("Failed to save snapshot: %v", err)
		}
	}

	results, err := b.Query(ctx, storage.Filter{URL: url})
	if err != nil {
		t.Fatalf("Failed to query snapshots: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(results))
	}

	got := results[0]
	if got.ID != snap.ID {
		t.Errorf("Expected newest snapshot %s first, got %s", snap.ID, got.ID)
	}
	if got.Result == nil || got.Result.RainBlocks[0][0] != forecast.Numeric(2.5) {
		t.Errorf("Expected rain blocks to round-trip, got %+v", got.Result)
	}
	if got.Duration != snap.Duration {
		t.Errorf("Expected Duration %v, got %v", snap.Duration, got.Duration)
	}
	// Postgres timestamps keep microseconds only
	if got.CreatedAt.Unix() != snap.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", snap.CreatedAt, got.CreatedAt)
	}
	if results[1].Result != nil || results[1].Error != "status 503" {
		t.Errorf("Expected failed snapshot without result, got %+v", results[1])
	}

	yes := true
	failures, err := b.Query(ctx, storage.Filter{URL: url, Failed: &yes, Limit: 5})
	if err != nil {
		t.Fatalf("Failed to query failures: %v", err)
	}
	if len(failures) != 1 {
		t.Errorf("Expected 1 failure, got %d", len(failures))
	}
}
