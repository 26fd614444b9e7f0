package jsonbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/powder/internal/forecast"
	"github.com/FranksOps/powder/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "powder.jsonl")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()

	older := &storage.Snapshot{
		ID:        "json1",
		URL:       "https://example.com/1",
		Result:    &forecast.Result{WindBlocks: []forecast.Block{{forecast.Numeric(25), forecast.Missing()}}},
		Duration:  10 * time.Millisecond,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	newer := &storage.Snapshot{
		ID:        "json2",
		URL:       "https://example.com/2",
		Duration:  20 * time.Millisecond,
		CreatedAt: now.Add(-1 * time.Hour),
		Error:     "fetch https://example.com/2: blocked by Cloudflare (status 403)",
	}

	// Saved out of chronological order on purpose.
	for _, s := range []*storage.Snapshot{newer, older} {
		if err := b.Save(ctx, s); err != nil {
			t.Fatalf("Failed to save snapshot %s: %v", s.ID, err)
		}
	}

	byURL, err := b.Query(ctx, storage.Filter{URL: "https://example.com/1"})
	if err != nil {
		t.Fatalf("Failed to query by URL: %v", err)
	}
	if len(byURL) != 1 || byURL[0].ID != "json1" {
		t.Fatalf("Expected json1 for URL filter, got %v", byURL)
	}
	if got := byURL[0].Result.WindBlocks[0]; got[0] != forecast.Numeric(25) || !got[1].IsMissing() {
		t.Errorf("Expected wind block to round-trip, got %v", got)
	}

	yes := true
	failed, err := b.Query(ctx, storage.Filter{Failed: &yes})
	if err != nil {
		t.Fatalf("Failed to query failures: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "json2" {
		t.Fatalf("Expected json2 as only failure, got %v", failed)
	}

	past := now.Add(-90 * time.Minute)
	since, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(since) != 1 || since[0].ID != "json2" {
		t.Fatalf("Expected json2 for Since filter, got %v", since)
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "json2" {
		t.Fatalf("Expected json2 first of 2, got %v", all)
	}

	offset, err := b.Query(ctx, storage.Filter{Offset: 1, Limit: 5})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(offset) != 1 || offset[0].ID != "json1" {
		t.Errorf("Expected json1 for offset 1, got %v", offset)
	}

	empty, err := b.Query(ctx, storage.Filter{Offset: 10})
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty page past the end, got %v, %v", empty, err)
	}

	// Saving after a query still appends.
	if err := b.Save(ctx, &storage.Snapshot{ID: "json3", URL: "https://example.com/3", CreatedAt: now}); err != nil {
		t.Fatalf("Failed to save after query: %v", err)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("Expected 3 lines, got %d", lines)
	}
}

func TestJSONBackend_CorruptLine(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "powder.jsonl")
	if err := os.WriteFile(filePath, []byte("{\"id\":\"ok\"}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	if _, err := b.Query(context.Background(), storage.Filter{}); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected decode error on line 2, got %v", err)
	}
}
