// Package migrations holds the versioned schema for both stores and the
// runners that apply it.
package migrations

import (
	"embed"

	"signal-trader/internal/storage"
)

// Files are named <version>_<description>.sql; versions are never reused.
var (
	//go:embed postgres/*.sql
	PostgresFS embed.FS

	//go:embed clickhouse/*.sql
	ClickhouseFS embed.FS
)

// PostgresMigrations returns the signals/trades migrations in order.
func PostgresMigrations() ([]storage.Migration, error) {
	return storage.LoadMigrations(PostgresFS, "postgres")
}

// ClickhouseMigrations returns the trade outcome migrations in order,
// each checked against the statement splitter.
func ClickhouseMigrations() ([]storage.Migration, error) {
	migrations, err := storage.LoadMigrations(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}
	for _, m := range migrations {
		if err := checkClickhouseMigration(m); err != nil {
			return nil, err
		}
	}
	return migrations, nil
}
