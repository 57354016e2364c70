package watcher

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/decision"
	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/storage/memory"
)

type staticPrices map[string]float64

func (s staticPrices) Price(_ context.Context, ticker string) (float64, error) {
	p, ok := s[ticker]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

type fillAtEntry struct{}

func (fillAtEntry) Execute(_ context.Context, o domain.Order) (*domain.Fill, error) {
	return &domain.Fill{OrderIDs: []string{"1"}, FillPrice: o.EntryPrice}, nil
}

func openTrade(t *testing.T, mgr *lifecycle.Manager, id, ticker string, long bool, entry, stop, target float64) *domain.Trade {
	t.Helper()
	ctx := context.Background()
	sig, err := mgr.CreateSignal(ctx,
		domain.RawMessage{ID: id, Author: "@yramki", ChannelID: "trades", Text: "x"},
		domain.ParsedSignal{Ticker: ticker, IsLong: long, EntryPrice: entry, StopLossPrice: stop, TargetPrice: target, Targets: []float64{target}, RiskPercent: 1},
	)
	require.NoError(t, err)
	trade, err := mgr.ExecuteSignal(ctx, sig.SignalID, decision.Plan{Amount: 100, Leverage: 2})
	require.NoError(t, err)
	return trade
}

func newManager() *lifecycle.Manager {
	signals := memory.NewSignalStore()
	trades := memory.NewTradeStore()
	return lifecycle.NewManager(lifecycle.Options{
		Signals:  signals,
		Trades:   trades,
		Ledger:   memory.NewLedger(signals, trades),
		Executor: fillAtEntry{},
		Logger:   log.New(io.Discard, "", 0),
	})
}

func TestCheck_ClosesOnTargetAndStop(t *testing.T) {
	ctx := context.Background()
	mgr := newManager()

	win := openTrade(t, mgr, "m1", "BTC", true, 100, 90, 120)
	loss := openTrade(t, mgr, "m2", "ETH", false, 50, 55, 40)
	idle := openTrade(t, mgr, "m3", "SOL", true, 10, 9, 12)
	unpriced := openTrade(t, mgr, "m4", "XYZ", true, 10, 9, 12)

	cfg := domain.DefaultRiskConfig()
	w := New(Options{
		Lifecycle: mgr,
		Prices:    staticPrices{"BTC": 121, "ETH": 56, "SOL": 10.5},
		Risk:      func() *domain.RiskConfig { return &cfg },
		Logger:    log.New(io.Discard, "", 0),
	})

	closed, err := w.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	got, err := mgr.GetTrade(ctx, win.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeClosed, got.Status)
	assert.Equal(t, domain.CloseTargetHit, *got.CloseReason)
	assert.Equal(t, 120.0, *got.ClosePrice)
	assert.Equal(t, 40.0, *got.PnLAmount) // 100 * 2 * 20%

	got, err = mgr.GetTrade(ctx, loss.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.CloseStopLoss, *got.CloseReason)
	assert.Less(t, *got.PnLAmount, 0.0)

	for _, id := range []string{idle.TradeID, unpriced.TradeID} {
		got, err = mgr.GetTrade(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TradeOpen, got.Status)
	}

	// Already closed trades are not revisited.
	closed, err = w.Check(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestCheck_AutoCloseDisabled(t *testing.T) {
	mgr := newManager()
	trade := openTrade(t, mgr, "m1", "BTC", true, 100, 90, 120)

	cfg := domain.DefaultRiskConfig()
	cfg.AutoCloseTrades = false
	w := New(Options{
		Lifecycle: mgr,
		Prices:    staticPrices{"BTC": 200},
		Risk:      func() *domain.RiskConfig { return &cfg },
		Logger:    log.New(io.Discard, "", 0),
	})

	closed, err := w.Check(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)

	got, err := mgr.GetTrade(context.Background(), trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeOpen, got.Status)
}

func TestTrigger(t *testing.T) {
	long := &domain.Trade{Direction: domain.DirectionLong, EntryPrice: 100, StopPrice: 90, TargetPrice: 120}
	short := &domain.Trade{Direction: domain.DirectionShort, EntryPrice: 100, StopPrice: 110, TargetPrice: 80}

	tests := []struct {
		name   string
		trade  *domain.Trade
		price  float64
		reason domain.CloseReason
		level  float64
		hit    bool
	}{
		{"long between", long, 105, "", 0, false},
		{"long target", long, 120, domain.CloseTargetHit, 120, true},
		{"long stop", long, 89.5, domain.CloseStopLoss, 90, true},
		{"short between", short, 95, "", 0, false},
		{"short target", short, 79, domain.CloseTargetHit, 80, true},
		{"short stop", short, 110, domain.CloseStopLoss, 110, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, level, hit := Trigger(tt.trade, tt.price)
			if reason != tt.reason || level != tt.level || hit != tt.hit {
				t.Errorf("Trigger(%v) = (%q, %v, %v), want (%q, %v, %v)", tt.price, reason, level, hit, tt.reason, tt.level, tt.hit)
			}
		})
	}
}
