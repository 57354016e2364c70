package storage

import (
	"context"

	"signal-trader/internal/domain"
)

// SignalStore provides access to signals storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if signal_id or
	// (channel_id, source_message_id) exists.
	Insert(ctx context.Context, s *domain.Signal) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.Signal, error)

	// GetBySourceMessage retrieves the signal created from a message.
	// Returns ErrNotFound if not exists.
	GetBySourceMessage(ctx context.Context, channelID, messageID string) (*domain.Signal, error)

	// GetByStatus retrieves signals in a status, ordered by created_at ASC.
	GetByStatus(ctx context.Context, status domain.SignalStatus) ([]*domain.Signal, error)

	// UpdateStatus moves a signal from one status to another and records reason.
	// Returns ErrNotFound if not exists, ErrConflict if current status != from.
	UpdateStatus(ctx context.Context, signalID string, from, to domain.SignalStatus, reason *string, updatedAt int64) error
}

// TradeStore provides access to trades storage.
// Trades are created only through Ledger.RecordExecution.
type TradeStore interface {
	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetBySignalID retrieves the trade opened from a signal.
	// Returns ErrNotFound if not exists.
	GetBySignalID(ctx context.Context, signalID string) (*domain.Trade, error)

	// GetOpen retrieves all open trades, ordered by opened_at ASC.
	GetOpen(ctx context.Context) ([]*domain.Trade, error)

	// GetClosed retrieves closed trades with closed_at in [start, end] (inclusive).
	GetClosed(ctx context.Context, start, end int64) ([]*domain.Trade, error)

	// CountOpen returns the number of open trades.
	CountOpen(ctx context.Context) (int, error)

	// Close writes close fields of t and sets status closed.
	// Returns ErrNotFound if not exists, ErrConflict if the trade is not open,
	// ErrInvalidInput if t violates the closed-trade invariant.
	Close(ctx context.Context, t *domain.Trade) error
}

// Ledger records executions atomically across signals and trades.
type Ledger interface {
	// RecordExecution marks the signal executed (pending -> executed) and
	// inserts the trade in one step. Nothing is written on error.
	// Returns ErrNotFound if the signal does not exist, ErrConflict if it is
	// not pending, ErrDuplicateKey if the trade exists.
	RecordExecution(ctx context.Context, signalID string, t *domain.Trade) error
}

// SeenMessageStore persists the detector seen-set.
// This enables resumption after restarts without re-ingesting messages.
type SeenMessageStore interface {
	// IsSeen checks if a message id reached a terminal detection state.
	IsSeen(ctx context.Context, channelID, messageID string) (bool, error)

	// MarkSeen records a terminal message id. Idempotent.
	MarkSeen(ctx context.Context, channelID, messageID, outcome string) error

	// LoadSeen returns all seen message ids for a channel (for warming the
	// in-memory cache).
	LoadSeen(ctx context.Context, channelID string) ([]string, error)
}

// TradeOutcomeStore provides access to trade_outcomes analytics storage.
type TradeOutcomeStore interface {
	// Insert adds a closed-trade outcome. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, o *domain.TradeOutcome) error

	// GetByTicker retrieves outcomes for a ticker, ordered by closed_at ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.TradeOutcome, error)

	// GetByTimeRange retrieves outcomes closed within [start, end] ms, ordered by closed_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeOutcome, error)

	// Summary aggregates outcomes per ticker, ordered by ticker ASC.
	Summary(ctx context.Context) ([]*domain.OutcomeSummary, error)
}
