package memory

import (
	"signal-trader/internal/domain"
)

func newSignal(id, messageID string, createdAt int64) *domain.Signal {
	return &domain.Signal{
		SignalID:        id,
		SourceMessageID: messageID,
		ChannelID:       "trades",
		Author:          "@yramki",
		Ticker:          "BTC",
		Direction:       domain.DirectionLong,
		EntryPrice:      67500,
		StopLossPrice:   65200,
		TargetPrices:    []float64{70000},
		RiskPercent:     1,
		Status:          domain.SignalPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func newOpenTrade(id, signalID string, openedAt int64) *domain.Trade {
	return &domain.Trade{
		TradeID:     id,
		SignalID:    signalID,
		Ticker:      "BTC",
		Direction:   domain.DirectionLong,
		Leverage:    5,
		EntryPrice:  67500,
		TargetPrice: 70000,
		StopPrice:   65200,
		Amount:      100,
		Status:      domain.TradeOpen,
		OpenedAt:    openedAt,
		OrderIDs:    []string{"ord-1"},
	}
}

func closeFields(t *domain.Trade, closedAt int64, reason domain.CloseReason, price, pnl, pct float64) *domain.Trade {
	c := t.Clone()
	c.Status = domain.TradeClosed
	c.ClosedAt = &closedAt
	c.CloseReason = &reason
	c.ClosePrice = &price
	c.PnLAmount = &pnl
	c.PnLPercent = &pct
	return c
}
