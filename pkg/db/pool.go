// Package db stores the deferred delivery log in Postgres via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// NewPool creates a new pgx connection pool from the given database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	// The delivery log is write-mostly from a handful of workers.
	config.MaxConns = 10
	config.MinConns = 1
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}

// Ping checks database connectivity. A nil pool is reported as an error.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("%s - database not configured", logPrefix)
	}
	return pool.Ping(ctx)
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies every migration not yet recorded in schema_migrations, in order,
// each in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("%s - create schema_migrations: %w", logPrefix, err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}

	ran := 0
	for _, m := range migrations {
		if _, ok := applied[m.Name]; ok {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", logPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied migration %s", logPrefix, m.Name))
		ran++
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete (%d applied, %d already present)", logPrefix, ran, len(migrations)-ran))
	return nil
}

// MigrationState reports one migration and when it was applied.
type MigrationState struct {
	Name      string
	AppliedAt *time.Time
}

// MigrationStatus returns the state of every known migration.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]MigrationState, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("%s - create schema_migrations: %w", logPrefix, err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationState{Name: m.Name}
		if at, ok := applied[m.Name]; ok {
			at := at
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// MigrationDown rolls back the most recently applied migration that has a down section.
// It returns the rolled back migration name, or "" when nothing was applied.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) (string, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return "", fmt.Errorf("%s - create schema_migrations: %w", logPrefix, err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return "", err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if _, ok := applied[m.Name]; !ok {
			continue
		}
		if m.Down == "" {
			return "", fmt.Errorf("%s - migration %s has no down section", logPrefix, m.Name)
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, m.Name)
			return err
		})
		if err != nil {
			return "", fmt.Errorf("%s - rollback of %s failed: %w", logPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Rolled back migration %s", logPrefix, m.Name))
		return m.Name, nil
	}
	return "", nil
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]time.Time, error) {
	rows, err := pool.Query(ctx, `SELECT name, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - read schema_migrations: %w", logPrefix, err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var at time.Time
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("%s - scan schema_migrations: %w", logPrefix, err)
		}
		out[name] = at
	}
	return out, rows.Err()
}
