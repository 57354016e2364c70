package metrics

import (
	"context"

	"signal-trader/internal/domain"
)

// ClosedTradeLister lists trades closed within [start, end] ms.
type ClosedTradeLister interface {
	ListClosedTrades(ctx context.Context, start, end int64) ([]*domain.Trade, error)
}

// TradeHistory derives outcomes from closed trades. It serves deployments
// without an outcome store.
type TradeHistory struct {
	trades ClosedTradeLister
}

// Compile-time interface check.
var _ OutcomeSource = (*TradeHistory)(nil)

// NewTradeHistory creates an outcome source over trades.
func NewTradeHistory(trades ClosedTradeLister) *TradeHistory {
	return &TradeHistory{trades: trades}
}

// GetByTimeRange returns the outcome of every valid closed trade in range.
// Trades failing the closed-field invariant are skipped.
func (h *TradeHistory) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeOutcome, error) {
	trades, err := h.trades.ListClosedTrades(ctx, start, end)
	if err != nil {
		return nil, err
	}
	outcomes := make([]*domain.TradeOutcome, 0, len(trades))
	for _, t := range trades {
		if o, ok := domain.OutcomeFromTrade(t); ok {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes, nil
}
