package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

func testSignal(id, messageID string, createdAt int64) *domain.Signal {
	return &domain.Signal{
		SignalID:        id,
		SourceMessageID: messageID,
		ChannelID:       "trades",
		Author:          "@yramki",
		Ticker:          "BTC",
		Direction:       domain.DirectionLong,
		EntryPrice:      67500,
		StopLossPrice:   65200,
		TargetPrices:    []float64{70000, 72000},
		RiskPercent:     1,
		Leverage:        ptr(10.0),
		Status:          domain.SignalPending,
		RawText:         "Long BTC at 67,500 SL 65,200 TP 70,000",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func testTrade(id, signalID string, openedAt int64) *domain.Trade {
	return &domain.Trade{
		TradeID:     id,
		SignalID:    signalID,
		Ticker:      "BTC",
		Direction:   domain.DirectionLong,
		Leverage:    10,
		EntryPrice:  67500,
		TargetPrice: 70000,
		StopPrice:   65200,
		Amount:      100,
		Status:      domain.TradeOpen,
		OpenedAt:    openedAt,
		OrderIDs:    []string{"entry-1", "tp-1", "sl-1"},
	}
}

func TestSignalStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	sig := testSignal("sig-001", "msg-001", 1700000000000)
	require.NoError(t, store.Insert(ctx, sig))

	got, err := store.GetByID(ctx, "sig-001")
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	bySource, err := store.GetBySourceMessage(ctx, "trades", "msg-001")
	require.NoError(t, err)
	assert.Equal(t, "sig-001", bySource.SignalID)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignalStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSignal("sig-001", "msg-001", 1000)))

	err := store.Insert(ctx, testSignal("sig-002", "msg-001", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSignalStore_UpdateStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSignal("sig-001", "msg-001", 1000)))
	require.NoError(t, store.Insert(ctx, testSignal("sig-002", "msg-002", 2000)))

	require.NoError(t, store.UpdateStatus(ctx, "sig-001", domain.SignalPending, domain.SignalIgnored, ptr("manual"), 3000))

	got, err := store.GetByID(ctx, "sig-001")
	require.NoError(t, err)
	assert.Equal(t, domain.SignalIgnored, got.Status)
	assert.Equal(t, "manual", *got.DecisionReason)
	assert.Equal(t, int64(3000), got.UpdatedAt)

	err = store.UpdateStatus(ctx, "sig-001", domain.SignalPending, domain.SignalExecuted, nil, 4000)
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = store.UpdateStatus(ctx, "missing", domain.SignalPending, domain.SignalExecuted, nil, 4000)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pending, err := store.GetByStatus(ctx, domain.SignalPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sig-002", pending[0].SignalID)
}

func TestLedger_RecordExecutionAndClose(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	signals := NewSignalStore(pool)
	trades := NewTradeStore(pool)
	ledger := NewLedger(pool)
	ctx := context.Background()

	require.NoError(t, signals.Insert(ctx, testSignal("sig-001", "msg-001", 1000)))

	trade := testTrade("trade-001", "sig-001", 2000)
	require.NoError(t, ledger.RecordExecution(ctx, "sig-001", trade))

	sig, err := signals.GetByID(ctx, "sig-001")
	require.NoError(t, err)
	assert.Equal(t, domain.SignalExecuted, sig.Status)

	got, err := trades.GetBySignalID(ctx, "sig-001")
	require.NoError(t, err)
	assert.Equal(t, trade, got)

	// A second execution of the same signal must not write a trade.
	err = ledger.RecordExecution(ctx, "sig-001", testTrade("trade-002", "sig-001", 3000))
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = trades.GetByID(ctx, "trade-002")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	n, err := trades.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	closed := trade.Clone()
	closed.Status = domain.TradeClosed
	closed.ClosedAt = ptr(int64(5000))
	reason := domain.CloseTargetHit
	closed.CloseReason = &reason
	closed.ClosePrice = ptr(70000.0)
	closed.PnLAmount = ptr(37.03703704)
	closed.PnLPercent = ptr(37.03703704)
	require.NoError(t, trades.Close(ctx, closed))

	assert.ErrorIs(t, trades.Close(ctx, closed), storage.ErrConflict)

	open, err := trades.GetOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	closedTrades, err := trades.GetClosed(ctx, 0, 10000)
	require.NoError(t, err)
	require.Len(t, closedTrades, 1)
	assert.Equal(t, domain.CloseTargetHit, *closedTrades[0].CloseReason)
	assert.NoError(t, closedTrades[0].Validate())
}

func TestLedger_RecordExecutionMissingSignal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := NewLedger(pool)
	trades := NewTradeStore(pool)
	ctx := context.Background()

	err := ledger.RecordExecution(ctx, "missing", testTrade("trade-001", "missing", 1000))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = trades.GetByID(ctx, "trade-001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeenMessageStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSeenMessageStore(pool)
	ctx := context.Background()

	require.NoError(t, store.MarkSeen(ctx, "trades", "m1", "ingested"))
	require.NoError(t, store.MarkSeen(ctx, "trades", "m1", "discarded"))
	require.NoError(t, store.MarkSeen(ctx, "alerts", "m2", "discarded"))

	seen, err := store.IsSeen(ctx, "trades", "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.IsSeen(ctx, "trades", "m2")
	require.NoError(t, err)
	assert.False(t, seen)

	ids, err := store.LoadSeen(ctx, "trades")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
}
