package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// setupTestDB starts a throwaway Postgres, migrates it to the current
// schema and returns a pool plus its cleanup.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("signals"),
		tcpostgres.WithUsername("trader"),
		tcpostgres.WithPassword("trader"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err)

	_, err = Migrate(ctx, pool, schemaMigrations(t))
	require.NoError(t, err, "migrate")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return pool, cleanup
}

// schemaMigrations loads the SQL files from disk. The migrations package
// imports this one, so its embedded copy is out of reach here.
func schemaMigrations(t *testing.T) []storage.Migration {
	t.Helper()
	dir := filepath.Join(moduleRoot(t), "internal", "storage", "migrations")
	migrations, err := storage.LoadMigrations(os.DirFS(dir), "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	return migrations
}

func moduleRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above working directory")
		}
		dir = parent
	}
}

// seedSignal inserts a pending BTC long for messageID and returns it.
func seedSignal(t *testing.T, pool *Pool, id, messageID string, createdAt int64) *domain.Signal {
	t.Helper()
	sig := testSignal(id, messageID, createdAt)
	require.NoError(t, NewSignalStore(pool).Insert(context.Background(), sig))
	return sig
}

// seedOpenTrade executes sig and opens a trade for it.
func seedOpenTrade(t *testing.T, pool *Pool, sig *domain.Signal, tradeID string, openedAt int64) *domain.Trade {
	t.Helper()
	trade := testTrade(tradeID, sig.SignalID, openedAt)
	require.NoError(t, NewLedger(pool).RecordExecution(context.Background(), sig.SignalID, trade))
	return trade
}

func ptr[T any](v T) *T {
	return &v
}
