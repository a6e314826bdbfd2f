package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists tab snapshots in PostgreSQL so they survive a host
// restart while the browser tab stays open.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS panel_snapshots (
			tab_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_panel_snapshots_updated ON panel_snapshots (updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, tabID string) ([]byte, error) {
	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM panel_snapshots WHERE tab_id=$1`,
		tabID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return []byte(payload), nil
}

func (s *PostgresStore) Save(ctx context.Context, tabID string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO panel_snapshots (tab_id, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (tab_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		tabID,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, tabID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM panel_snapshots WHERE tab_id=$1`, tabID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
