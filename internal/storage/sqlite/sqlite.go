package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/powder/internal/forecast"
	"github.com/FranksOps/powder/internal/storage"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	result TEXT,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS snapshots_url_created_at ON snapshots (url, created_at);
`

// New opens (creating if needed) a SQLite snapshot archive at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; concurrent refreshes would otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, snap *storage.Snapshot) error {
	var result sql.NullString
	if snap.Result != nil {
		data, err := json.Marshal(snap.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, url, result, duration_ms, created_at, error) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.URL,
		result,
		snap.Duration.Milliseconds(),
		snap.CreatedAt.UTC(),
		snap.Error,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Snapshot, error) {
	query := `SELECT id, url, result, duration_ms, created_at, error FROM snapshots WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.Failed != nil {
		if *filter.Failed {
			query += ` AND error <> ''`
		} else {
			query += ` AND error = ''`
		}
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*storage.Snapshot
	for rows.Next() {
		var s storage.Snapshot
		var result sql.NullString
		var durationMs int64

		if err := rows.Scan(&s.ID, &s.URL, &result, &durationMs, &s.CreatedAt, &s.Error); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		s.Duration = time.Duration(durationMs) * time.Millisecond
		if result.Valid {
			s.Result = &forecast.Result{}
			if err := json.Unmarshal([]byte(result.String), s.Result); err != nil {
				return nil, fmt.Errorf("decode result of %s: %w", s.ID, err)
			}
		}

		snaps = append(snaps, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
