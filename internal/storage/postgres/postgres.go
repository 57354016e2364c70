package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags every connection in pg_stat_activity.
const ApplicationName = "signal-trader"

// Pool sizing. The service holds at most one detector write, one watcher
// close and a few operator API requests at a time.
const (
	DefaultMaxConns        = 8
	DefaultMinConns        = 2
	DefaultMaxConnIdleTime = 5 * time.Minute
	DefaultHealthCheck     = 30 * time.Second
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption adjusts the pool configuration before connecting.
type PoolOption func(*pgxpool.Config)

// WithMaxConns overrides DefaultMaxConns. One-shot tools such as tradectl
// need a single connection.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) {
		c.MaxConns = n
		if c.MinConns > n {
			c.MinConns = n
		}
	}
}

// NewPool connects to Postgres and pings it. Pool limits default to the
// values above; settings given in the DSN (pool_max_conns etc.) win.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	applyDefaults(config, dsn)
	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// applyDefaults sets pool limits the DSN leaves unset.
func applyDefaults(c *pgxpool.Config, dsn string) {
	if !strings.Contains(dsn, "pool_max_conns") {
		c.MaxConns = DefaultMaxConns
	}
	if !strings.Contains(dsn, "pool_min_conns") && c.MinConns < DefaultMinConns {
		c.MinConns = min(int32(DefaultMinConns), c.MaxConns)
	}
	if !strings.Contains(dsn, "pool_max_conn_idle_time") {
		c.MaxConnIdleTime = DefaultMaxConnIdleTime
	}
	if !strings.Contains(dsn, "pool_health_check_period") {
		c.HealthCheckPeriod = DefaultHealthCheck
	}
	if _, ok := c.ConnConfig.RuntimeParams["application_name"]; !ok {
		c.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation     = "23505" // unique_violation
	pgErrForeignKeyViolation = "23503" // foreign_key_violation
	pgErrCheckViolation      = "23514" // check_violation: direction, status, closed-field rules
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return err != nil && pgErrorCode(err) == pgErrUniqueViolation
}

// isInvalidRowError reports a row the schema rejects: a CHECK constraint
// (unknown direction or status, partial close fields) or a trade whose
// signal does not exist.
func isInvalidRowError(err error) bool {
	if err == nil {
		return false
	}
	switch pgErrorCode(err) {
	case pgErrCheckViolation, pgErrForeignKeyViolation:
		return true
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
