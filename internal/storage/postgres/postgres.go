package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/powder/internal/forecast"
	"github.com/FranksOps/powder/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id UUID PRIMARY KEY,
	url TEXT NOT NULL,
	result JSONB,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS snapshots_url_created_at ON snapshots (url, created_at DESC);
`

// New connects to dsn and ensures the snapshot table exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, snap *storage.Snapshot) error {
	var result []byte
	if snap.Result != nil {
		var err error
		if result, err = json.Marshal(snap.Result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}

	_, err := b.pool.Exec(ctx,
		`INSERT INTO snapshots (id, url, result, duration_ms, created_at, error) VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID,
		snap.URL,
		result,
		snap.Duration.Milliseconds(),
		snap.CreatedAt,
		snap.Error,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Snapshot, error) {
	query := `SELECT id::text, url, result, duration_ms, created_at, error FROM snapshots WHERE 1=1`
	args := pgx.NamedArgs{}

	if filter.URL != "" {
		query += ` AND url = @url`
		args["url"] = filter.URL
	}
	if filter.Failed != nil {
		if *filter.Failed {
			query += ` AND error <> ''`
		} else {
			query += ` AND error = ''`
		}
	}
	if filter.Since != nil {
		query += ` AND created_at >= @since`
		args["since"] = *filter.Since
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = filter.Limit
	}
	if filter.Offset > 0 {
		query += ` OFFSET @offset`
		args["offset"] = filter.Offset
	}

	rows, err := b.pool.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}

	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Snapshot, error) {
		var s storage.Snapshot
		var result []byte
		var durationMs int64
		if err := row.Scan(&s.ID, &s.URL, &result, &durationMs, &s.CreatedAt, &s.Error); err != nil {
			return nil, err
		}
		s.Duration = time.Duration(durationMs) * time.Millisecond
		if result != nil {
			s.Result = &forecast.Result{}
			if err := json.Unmarshal(result, s.Result); err != nil {
				return nil, fmt.Errorf("decode result of %s: %w", s.ID, err)
			}
		}
		return &s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return snaps, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
