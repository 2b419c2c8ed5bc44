package tenancy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminChannel runs database-level DDL against the administrative database.
// CREATE DATABASE and DROP DATABASE cannot run inside a transaction, so every
// call is a plain Exec on its own connection.
type AdminChannel interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
	Close()
}

type adminChannel struct {
	pool *pgxpool.Pool
}

func NewAdminChannel(pool *pgxpool.Pool) AdminChannel {
	return &adminChannel{pool: pool}
}

func (a *adminChannel) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var one int
	query := `SELECT 1 FROM pg_database WHERE datname = $1`
	err := a.pool.QueryRow(ctx, query, name).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check database %s: %w", name, err)
	}
	return true, nil
}

func (a *adminChannel) CreateDatabase(ctx context.Context, name string) error {
	// Database names cannot be bound as statement parameters.
	ddl := fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{name}.Sanitize())
	if _, err := a.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

func (a *adminChannel) DropDatabase(ctx context.Context, name string) error {
	ddl := fmt.Sprintf(`DROP DATABASE IF EXISTS %s`, pgx.Identifier{name}.Sanitize())
	if _, err := a.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	return nil
}

func (a *adminChannel) Close() {
	a.pool.Close()
}
