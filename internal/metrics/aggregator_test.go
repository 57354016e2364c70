package metrics

import (
	"context"
	"errors"
	"testing"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage/memory"
)

func TestAggregator_Compute(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeOutcomeStore()

	short := outcome("t3", "ETH", -6, 3000)
	short.Direction = domain.DirectionShort
	short.CloseReason = domain.CloseStopLoss

	for _, o := range []*domain.TradeOutcome{
		outcome("t1", "BTC", 10, 1000),
		outcome("t2", "BTC", 4, 2000),
		short,
		outcome("t4", "BTC", 1, 9000), // outside range
	} {
		if err := store.Insert(ctx, o); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	b, err := NewAggregator(store).Compute(ctx, 0, 5000)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if b.Overall.TotalTrades != 3 {
		t.Errorf("expected 3 trades, got %d", b.Overall.TotalTrades)
	}
	if len(b.Outcomes) != 3 || b.Outcomes[0].TradeID != "t1" {
		t.Errorf("outcomes not chronological: %+v", b.Outcomes)
	}

	if len(b.ByTicker) != 2 || b.ByTicker[0].Key != "BTC" || b.ByTicker[1].Key != "ETH" {
		t.Fatalf("unexpected ticker groups: %+v", b.ByTicker)
	}
	if b.ByTicker[0].TotalTrades != 2 || b.ByTicker[0].WinRate != 1 {
		t.Errorf("BTC group wrong: %+v", b.ByTicker[0])
	}

	if len(b.ByDirection) != 2 || b.ByDirection[0].Key != "long" || b.ByDirection[1].Key != "short" {
		t.Errorf("unexpected direction groups: %+v", b.ByDirection)
	}
	if len(b.ByCloseReason) != 2 || b.ByCloseReason[0].Key != "stop_loss" {
		t.Errorf("unexpected close reason groups: %+v", b.ByCloseReason)
	}
}

func TestAggregator_NoTrades(t *testing.T) {
	_, err := NewAggregator(memory.NewTradeOutcomeStore()).Compute(context.Background(), 0, 1000)
	if !errors.Is(err, ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
}

type failingSource struct{}

func (failingSource) GetByTimeRange(context.Context, int64, int64) ([]*domain.TradeOutcome, error) {
	return nil, errors.New("connection refused")
}

func TestAggregator_SourceError(t *testing.T) {
	_, err := NewAggregator(failingSource{}).Compute(context.Background(), 0, 1000)
	if err == nil || errors.Is(err, ErrNoTrades) {
		t.Errorf("expected source error, got %v", err)
	}
}
