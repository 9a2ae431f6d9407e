package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// EnsureCatalog creates catalog_items and fills it with seed when the table
// is empty. Existing rows are left untouched.
func EnsureCatalog(ctx context.Context, db *pgxpool.Pool, seed []catalog.Item) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_items (
			id    INTEGER PRIMARY KEY,
			name  TEXT NOT NULL,
			stock INTEGER NOT NULL CHECK (stock >= 0)
		)`); err != nil {
		return fmt.Errorf("create catalog_items: %w", err)
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM catalog_items`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return tx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	for _, it := range seed {
		batch.Queue(`INSERT INTO catalog_items(id, name, stock) VALUES ($1, $2, $3)`, it.ID, it.Name, it.TotalStock)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed catalog_items: %w", err)
	}
	return tx.Commit(ctx)
}
