package memory

import (
	"context"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// Ledger is an in-memory implementation of storage.Ledger over a SignalStore
// and a TradeStore. Locks are always taken signals first, then trades.
type Ledger struct {
	signals *SignalStore
	trades  *TradeStore
}

// NewLedger creates a ledger writing to the given stores.
func NewLedger(signals *SignalStore, trades *TradeStore) *Ledger {
	return &Ledger{signals: signals, trades: trades}
}

// RecordExecution marks the signal executed and inserts the trade atomically.
func (l *Ledger) RecordExecution(_ context.Context, signalID string, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.SignalID != signalID || t.Status != domain.TradeOpen || t.Validate() != nil {
		return storage.ErrInvalidInput
	}

	l.signals.mu.Lock()
	defer l.signals.mu.Unlock()
	l.trades.mu.Lock()
	defer l.trades.mu.Unlock()

	sig, ok := l.signals.data[signalID]
	if !ok {
		return storage.ErrNotFound
	}
	if sig.Status != domain.SignalPending {
		return storage.ErrConflict
	}
	if err := l.trades.insertLocked(t); err != nil {
		return err
	}
	return l.signals.updateStatusLocked(signalID, domain.SignalPending, domain.SignalExecuted, nil, t.OpenedAt)
}

// Compile-time interface check.
var _ storage.Ledger = (*Ledger)(nil)
