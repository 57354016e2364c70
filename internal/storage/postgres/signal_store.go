package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	signal_id, source_message_id, channel_id, author, ticker, direction,
	entry_price, stop_loss_price, target_prices, risk_percent, leverage,
	status, decision_reason, raw_text, created_at, updated_at
`

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id or source message exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	if sig == nil || sig.SignalID == "" || sig.SourceMessageID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.pool.Exec(ctx, query,
		sig.SignalID,
		sig.SourceMessageID,
		sig.ChannelID,
		sig.Author,
		sig.Ticker,
		string(sig.Direction),
		sig.EntryPrice,
		sig.StopLossPrice,
		sig.TargetPrices,
		sig.RiskPercent,
		sig.Leverage,
		string(sig.Status),
		sig.DecisionReason,
		sig.RawText,
		sig.CreatedAt,
		sig.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isInvalidRowError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE signal_id = $1`

	sig, err := scanSignal(s.pool.QueryRow(ctx, query, signalID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// GetBySourceMessage retrieves the signal created from a message.
func (s *SignalStore) GetBySourceMessage(ctx context.Context, channelID, messageID string) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE channel_id = $1 AND source_message_id = $2`

	sig, err := scanSignal(s.pool.QueryRow(ctx, query, channelID, messageID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by source message: %w", err)
	}
	return sig, nil
}

// GetByStatus retrieves signals in a status, ordered by created_at ASC.
func (s *SignalStore) GetByStatus(ctx context.Context, status domain.SignalStatus) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE status = $1
		ORDER BY created_at ASC, signal_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get signals by status: %w", err)
	}
	defer rows.Close()

	var result []*domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		result = append(result, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return result, nil
}

// UpdateStatus moves a signal from one status to another.
// The status guard in the WHERE clause makes the transition a compare-and-set.
func (s *SignalStore) UpdateStatus(ctx context.Context, signalID string, from, to domain.SignalStatus, reason *string, updatedAt int64) error {
	if !to.IsValid() {
		return storage.ErrInvalidInput
	}
	return updateSignalStatus(ctx, s.pool, signalID, from, to, reason, updatedAt)
}

// execQuerier is satisfied by both *Pool and pgx.Tx.
type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateSignalStatus(ctx context.Context, db execQuerier, signalID string, from, to domain.SignalStatus, reason *string, updatedAt int64) error {
	query := `
		UPDATE signals
		SET status = $3, decision_reason = COALESCE($4, decision_reason), updated_at = $5
		WHERE signal_id = $1 AND status = $2
	`

	tag, err := db.Exec(ctx, query, signalID, string(from), string(to), reason, updatedAt)
	if err != nil {
		return fmt.Errorf("update signal status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a lost race.
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM signals WHERE signal_id = $1)`, signalID).Scan(&exists); err != nil {
		return fmt.Errorf("check signal exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

// scanSignal scans a single row into a Signal.
func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	var direction, status string

	err := row.Scan(
		&sig.SignalID,
		&sig.SourceMessageID,
		&sig.ChannelID,
		&sig.Author,
		&sig.Ticker,
		&direction,
		&sig.EntryPrice,
		&sig.StopLossPrice,
		&sig.TargetPrices,
		&sig.RiskPercent,
		&sig.Leverage,
		&status,
		&sig.DecisionReason,
		&sig.RawText,
		&sig.CreatedAt,
		&sig.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sig.Direction = domain.Direction(direction)
	sig.Status = domain.SignalStatus(status)
	return &sig, nil
}
