package metrics

import (
	"context"
	"errors"
	"testing"

	"signal-trader/internal/domain"
)

type listerFunc func(ctx context.Context, start, end int64) ([]*domain.Trade, error)

func (f listerFunc) ListClosedTrades(ctx context.Context, start, end int64) ([]*domain.Trade, error) {
	return f(ctx, start, end)
}

func closedTrade(id string, pnlPct float64, closedAt int64) *domain.Trade {
	reason := domain.CloseTargetHit
	price := 110.0
	pnl := pnlPct
	return &domain.Trade{
		TradeID:     id,
		SignalID:    "s-" + id,
		Ticker:      "BTC",
		Direction:   domain.DirectionLong,
		Leverage:    1,
		EntryPrice:  100,
		Amount:      100,
		Status:      domain.TradeClosed,
		OpenedAt:    closedAt - 500,
		ClosedAt:    &closedAt,
		CloseReason: &reason,
		ClosePrice:  &price,
		PnLAmount:   &pnl,
		PnLPercent:  &pnlPct,
	}
}

func TestTradeHistory_GetByTimeRange(t *testing.T) {
	open := &domain.Trade{TradeID: "open", Status: domain.TradeOpen}
	var gotStart, gotEnd int64
	source := NewTradeHistory(listerFunc(func(_ context.Context, start, end int64) ([]*domain.Trade, error) {
		gotStart, gotEnd = start, end
		return []*domain.Trade{closedTrade("t1", 10, 1000), open, closedTrade("t2", -5, 2000)}, nil
	}))

	outcomes, err := source.GetByTimeRange(context.Background(), 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if gotStart != 0 || gotEnd != 5000 {
		t.Errorf("range not passed through: %d..%d", gotStart, gotEnd)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].HoldDurationMs != 500 || outcomes[1].PnLPercent != -5 {
		t.Errorf("unexpected outcomes: %+v %+v", outcomes[0], outcomes[1])
	}

	b, err := NewAggregator(source).Compute(context.Background(), 0, 5000)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if b.Overall.Wins != 1 || b.Overall.Losses != 1 {
		t.Errorf("unexpected win/loss: %+v", b.Overall)
	}
}

func TestTradeHistory_Error(t *testing.T) {
	boom := errors.New("db down")
	source := NewTradeHistory(listerFunc(func(context.Context, int64, int64) ([]*domain.Trade, error) {
		return nil, boom
	}))
	if _, err := source.GetByTimeRange(context.Background(), 0, 1); !errors.Is(err, boom) {
		t.Errorf("expected db error, got %v", err)
	}
}
