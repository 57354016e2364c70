package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// Ledger implements storage.Ledger in a single PostgreSQL transaction.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ storage.Ledger = (*Ledger)(nil)

// RecordExecution marks the signal executed and inserts the trade atomically.
func (l *Ledger) RecordExecution(ctx context.Context, signalID string, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.SignalID != signalID || t.Status != domain.TradeOpen || t.Validate() != nil {
		return storage.ErrInvalidInput
	}

	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		if err := updateSignalStatus(ctx, tx, signalID, domain.SignalPending, domain.SignalExecuted, nil, t.OpenedAt); err != nil {
			return err
		}
		return insertTrade(ctx, tx, t)
	})
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}
