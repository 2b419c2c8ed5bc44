package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings bounds every pool the process opens. The master pool and each
// tenant pool share the same settings; only the DSN differs.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// NewPool opens a pgx pool for the DSN and verifies it with a single ping.
// The ping failure path closes the pool, so a non-nil return is healthy.
func NewPool(ctx context.Context, dsn string, settings PoolSettings) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	if settings.MaxConns > 0 {
		config.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		config.MinConns = settings.MinConns
	}
	if settings.ConnMaxLifetime > 0 {
		config.MaxConnLifetime = settings.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
