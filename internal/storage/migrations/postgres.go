package migrations

import (
	"context"
	"log"

	"signal-trader/internal/storage/postgres"
)

// RunPostgresMigrations brings the signals/trades schema up to the newest
// embedded version. Already-applied versions are skipped.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migrations, err := PostgresMigrations()
	if err != nil {
		return err
	}
	applied, err := postgres.Migrate(ctx, pool, migrations)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		log.Printf("Applied postgres migrations %v", applied)
	}
	return nil
}
