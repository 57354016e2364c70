package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// TradeOutcomeStore implements storage.TradeOutcomeStore using ClickHouse.
type TradeOutcomeStore struct {
	conn *Conn
}

// NewTradeOutcomeStore creates a new TradeOutcomeStore.
func NewTradeOutcomeStore(conn *Conn) *TradeOutcomeStore {
	return &TradeOutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeOutcomeStore = (*TradeOutcomeStore)(nil)

// Insert adds a closed-trade outcome. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeOutcomeStore) Insert(ctx context.Context, o *domain.TradeOutcome) error {
	if o == nil || o.TradeID == "" {
		return storage.ErrInvalidInput
	}

	// MergeTree does not enforce keys; check before insert for append-only semantics.
	exists, err := s.exists(ctx, o.TradeID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO trade_outcomes (
			trade_id, signal_id, ticker, direction, close_reason,
			leverage, amount, entry_price, close_price, pnl_amount, pnl_percent,
			opened_at, closed_at, hold_duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		o.TradeID, o.SignalID, o.Ticker, string(o.Direction), string(o.CloseReason),
		o.Leverage, o.Amount, o.EntryPrice, o.ClosePrice, o.PnLAmount, o.PnLPercent,
		o.OpenedAt, o.ClosedAt, o.HoldDurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert trade outcome: %w", err)
	}
	return nil
}

// GetByTicker retrieves outcomes for a ticker, ordered by closed_at ASC.
func (s *TradeOutcomeStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT
			trade_id, signal_id, ticker, direction, close_reason,
			leverage, amount, entry_price, close_price, pnl_amount, pnl_percent,
			opened_at, closed_at, hold_duration_ms
		FROM trade_outcomes
		WHERE ticker = ?
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query trade outcomes: %w", err)
	}
	return scanOutcomes(rows)
}

// GetByTimeRange retrieves outcomes closed within [start, end] ms, ordered by closed_at ASC.
func (s *TradeOutcomeStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT
			trade_id, signal_id, ticker, direction, close_reason,
			leverage, amount, entry_price, close_price, pnl_amount, pnl_percent,
			opened_at, closed_at, hold_duration_ms
		FROM trade_outcomes
		WHERE closed_at >= ? AND closed_at <= ?
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query trade outcomes: %w", err)
	}
	return scanOutcomes(rows)
}

func scanOutcomes(rows driver.Rows) ([]*domain.TradeOutcome, error) {
	defer rows.Close()

	var result []*domain.TradeOutcome
	for rows.Next() {
		var o domain.TradeOutcome
		var direction, reason string
		if err := rows.Scan(
			&o.TradeID, &o.SignalID, &o.Ticker, &direction, &reason,
			&o.Leverage, &o.Amount, &o.EntryPrice, &o.ClosePrice, &o.PnLAmount, &o.PnLPercent,
			&o.OpenedAt, &o.ClosedAt, &o.HoldDurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan trade outcome: %w", err)
		}
		o.Direction = domain.Direction(direction)
		o.CloseReason = domain.CloseReason(reason)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade outcomes: %w", err)
	}
	return result, nil
}

// Summary aggregates outcomes per ticker, ordered by ticker ASC.
func (s *TradeOutcomeStore) Summary(ctx context.Context) ([]*domain.OutcomeSummary, error) {
	query := `
		SELECT
			ticker,
			count() AS total_trades,
			countIf(pnl_amount > 0) AS wins,
			countIf(pnl_amount <= 0) AS losses,
			sum(pnl_amount) AS total_pnl,
			avg(pnl_percent) AS avg_pnl_percent
		FROM trade_outcomes
		GROUP BY ticker
		ORDER BY ticker ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query outcome summary: %w", err)
	}
	defer rows.Close()

	var result []*domain.OutcomeSummary
	for rows.Next() {
		var sum domain.OutcomeSummary
		if err := rows.Scan(&sum.Ticker, &sum.TotalTrades, &sum.Wins, &sum.Losses, &sum.TotalPnL, &sum.AvgPnLPercent); err != nil {
			return nil, fmt.Errorf("scan outcome summary: %w", err)
		}
		result = append(result, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome summary: %w", err)
	}
	return result, nil
}

func (s *TradeOutcomeStore) exists(ctx context.Context, tradeID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM trade_outcomes WHERE trade_id = ?`, tradeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
