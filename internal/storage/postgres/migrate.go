package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-trader/internal/storage"
)

// migrationLockKey serializes migrations between the server and tradectl
// starting against the same database.
const migrationLockKey int64 = 0x7369676e616c // "signal"

const pgErrUndefinedTable = "42P01"

// Migrate applies every migration newer than the recorded schema version,
// each in its own transaction together with its schema_migrations row.
// Returns the versions applied.
func Migrate(ctx context.Context, pool *Pool, migrations []storage.Migration) ([]int, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []int
	for _, m := range migrations {
		var ran bool
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
				return fmt.Errorf("lock: %w", err)
			}

			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
				return fmt.Errorf("check version: %w", err)
			}
			if exists {
				return nil
			}

			// No arguments: simple protocol, so a file may hold several statements.
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
				return fmt.Errorf("record version: %w", err)
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if ran {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}

// SchemaVersion returns the highest applied migration version, or 0 for a
// database that was never migrated.
func SchemaVersion(ctx context.Context, pool *Pool) (int, error) {
	var v int
	err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	if err != nil {
		if pgErrorCode(err) == pgErrUndefinedTable {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
