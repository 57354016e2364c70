package memory

import (
	"context"
	"errors"
	"testing"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

func TestLedger_RecordExecution(t *testing.T) {
	signals := NewSignalStore()
	trades := NewTradeStore()
	ledger := NewLedger(signals, trades)
	ctx := context.Background()

	if err := signals.Insert(ctx, newSignal("sig1", "msg1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := ledger.RecordExecution(ctx, "sig1", newOpenTrade("trade1", "sig1", 2000)); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}

	sig, _ := signals.GetByID(ctx, "sig1")
	if sig.Status != domain.SignalExecuted {
		t.Errorf("Signal status = %s, want executed", sig.Status)
	}

	trade, err := trades.GetBySignalID(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignalID failed: %v", err)
	}
	if trade.TradeID != "trade1" || trade.Status != domain.TradeOpen {
		t.Errorf("unexpected trade: %+v", trade)
	}

	err = ledger.RecordExecution(ctx, "sig1", newOpenTrade("trade2", "sig1", 3000))
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Expected ErrConflict on second execution, got %v", err)
	}
	if n, _ := trades.CountOpen(ctx); n != 1 {
		t.Errorf("CountOpen = %d, want 1", n)
	}
}

func TestLedger_NothingWrittenOnFailure(t *testing.T) {
	signals := NewSignalStore()
	trades := NewTradeStore()
	ledger := NewLedger(signals, trades)
	ctx := context.Background()

	err := ledger.RecordExecution(ctx, "missing", newOpenTrade("trade1", "missing", 2000))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := trades.GetByID(ctx, "trade1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("trade persisted despite failed execution: %v", err)
	}

	_ = signals.Insert(ctx, newSignal("sig1", "msg1", 1000))
	bad := newOpenTrade("trade1", "other-signal", 2000)
	if err := ledger.RecordExecution(ctx, "sig1", bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for mismatched signal, got %v", err)
	}
	sig, _ := signals.GetByID(ctx, "sig1")
	if sig.Status != domain.SignalPending {
		t.Errorf("Signal status = %s, want pending", sig.Status)
	}
}

func TestTradeStore_Close(t *testing.T) {
	signals := NewSignalStore()
	trades := NewTradeStore()
	ledger := NewLedger(signals, trades)
	ctx := context.Background()

	_ = signals.Insert(ctx, newSignal("sig1", "msg1", 1000))
	open := newOpenTrade("trade1", "sig1", 2000)
	if err := ledger.RecordExecution(ctx, "sig1", open); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}

	closed := closeFields(open, 5000, domain.CloseTargetHit, 70000, 18.52, 18.52)
	if err := trades.Close(ctx, closed); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, _ := trades.GetByID(ctx, "trade1")
	if err := got.Validate(); err != nil {
		t.Errorf("closed trade invalid: %v", err)
	}
	if got.Status != domain.TradeClosed || *got.CloseReason != domain.CloseTargetHit {
		t.Errorf("unexpected closed trade: %+v", got)
	}

	if err := trades.Close(ctx, closed); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Expected ErrConflict on second close, got %v", err)
	}

	if err := trades.Close(ctx, open); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for open trade, got %v", err)
	}

	if n, _ := trades.CountOpen(ctx); n != 0 {
		t.Errorf("CountOpen = %d, want 0", n)
	}

	inRange, _ := trades.GetClosed(ctx, 4000, 6000)
	if len(inRange) != 1 {
		t.Errorf("GetClosed returned %d trades, want 1", len(inRange))
	}
	outOfRange, _ := trades.GetClosed(ctx, 6000, 7000)
	if len(outOfRange) != 0 {
		t.Errorf("GetClosed returned %d trades, want 0", len(outOfRange))
	}
}

func TestTradeStore_NotFound(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	closed := closeFields(newOpenTrade("nonexistent", "sig", 1), 2, domain.CloseManual, 1, 0, 0)
	if err := store.Close(ctx, closed); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
