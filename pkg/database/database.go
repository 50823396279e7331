// Package database wraps a pgx connection pool with the small surface the
// rest of the codebase needs: construction with a connectivity check,
// health probing, and shutdown.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghuser/itemflow/pkg/logger"
)

// Database holds the shared PostgreSQL connection pool.
type Database struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewPool connects to PostgreSQL at databaseURL and verifies connectivity
// with a short ping before returning.
func NewPool(ctx context.Context, databaseURL string, log logger.Logger) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return &Database{pool: pool, log: log}, nil
}

// Pool returns the underlying pgx pool for repositories.
func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

// Ping checks database connectivity.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}
	return nil
}

// Close releases all pool connections.
func (d *Database) Close() {
	d.pool.Close()
}
