package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, signal_id, ticker, direction, leverage, entry_price, target_price,
	stop_price, amount, status, opened_at, order_ids,
	closed_at, close_reason, close_price, pnl_amount, pnl_percent
`

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetBySignalID retrieves the trade opened from a signal.
func (s *TradeStore) GetBySignalID(ctx context.Context, signalID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE signal_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, signalID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by signal id: %w", err)
	}
	return t, nil
}

// GetOpen retrieves all open trades, ordered by opened_at ASC.
func (s *TradeStore) GetOpen(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'open'
		ORDER BY opened_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetClosed retrieves closed trades with closed_at in [start, end] (inclusive).
func (s *TradeStore) GetClosed(ctx context.Context, start, end int64) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'closed' AND closed_at >= $1 AND closed_at <= $2
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get closed trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// CountOpen returns the number of open trades.
func (s *TradeStore) CountOpen(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE status = 'open'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return n, nil
}

// Close writes close fields and sets status closed.
// Only an open row is updated, so concurrent closers see ErrConflict.
func (s *TradeStore) Close(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.Status != domain.TradeClosed || t.Validate() != nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE trades
		SET status = 'closed', closed_at = $2, close_reason = $3, close_price = $4,
		    pnl_amount = $5, pnl_percent = $6
		WHERE trade_id = $1 AND status = 'open'
	`

	tag, err := s.pool.Exec(ctx, query,
		t.TradeID,
		*t.ClosedAt,
		string(*t.CloseReason),
		t.ClosePrice,
		*t.PnLAmount,
		*t.PnLPercent,
	)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trades WHERE trade_id = $1)`, t.TradeID).Scan(&exists); err != nil {
		return fmt.Errorf("check trade exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

func insertTrade(ctx context.Context, db execQuerier, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			trade_id, signal_id, ticker, direction, leverage, entry_price, target_price,
			stop_price, amount, status, opened_at, order_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	orderIDs := t.OrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}

	_, err := db.Exec(ctx, query,
		t.TradeID,
		t.SignalID,
		t.Ticker,
		string(t.Direction),
		t.Leverage,
		t.EntryPrice,
		t.TargetPrice,
		t.StopPrice,
		t.Amount,
		string(t.Status),
		t.OpenedAt,
		orderIDs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isInvalidRowError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var direction, status string
	var closeReason *string

	err := row.Scan(
		&t.TradeID,
		&t.SignalID,
		&t.Ticker,
		&direction,
		&t.Leverage,
		&t.EntryPrice,
		&t.TargetPrice,
		&t.StopPrice,
		&t.Amount,
		&status,
		&t.OpenedAt,
		&t.OrderIDs,
		&t.ClosedAt,
		&closeReason,
		&t.ClosePrice,
		&t.PnLAmount,
		&t.PnLPercent,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	if closeReason != nil {
		r := domain.CloseReason(*closeReason)
		t.CloseReason = &r
	}
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
