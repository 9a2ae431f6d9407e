package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresBackend struct {
	DB *pgxpool.Pool
}

func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := p.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reservation_state (
			key        TEXT PRIMARY KEY,
			blob       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (p *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var b []byte
	err := p.DB.QueryRow(ctx, `SELECT blob FROM reservation_state WHERE key=$1`, StateKey).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (p *PostgresBackend) Write(ctx context.Context, blob []byte) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO reservation_state(key, blob, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()
	`, StateKey, blob)
	return err
}
