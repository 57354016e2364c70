// Package lifecycle owns the signal and trade state machines.
//
// Signals move pending → executed | ignored. Trades move open → closed.
// Execute and close are serialized per id so a signal is executed at most once.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"signal-trader/internal/decision"
	"signal-trader/internal/domain"
	"signal-trader/internal/idhash"
	"signal-trader/internal/observability"
	"signal-trader/internal/storage"
)

// Executor places orders with a broker. Broker rejections are returned as
// *domain.ExecutionError.
type Executor interface {
	Execute(ctx context.Context, order domain.Order) (*domain.Fill, error)
}

// Notifier is told about trade lifecycle events. Failures are logged only.
type Notifier interface {
	TradeOpened(ctx context.Context, t *domain.Trade) error
	TradeClosed(ctx context.Context, t *domain.Trade) error
}

// Manager implements the signal and trade lifecycle.
type Manager struct {
	signals  storage.SignalStore
	trades   storage.TradeStore
	ledger   storage.Ledger
	outcomes storage.TradeOutcomeStore
	executor Executor
	notifier Notifier
	metrics  *observability.Metrics
	now      func() time.Time
	logger   *log.Logger

	signalLocks *keyedMutex
	tradeLocks  *keyedMutex
}

// Options contains configuration for creating a Manager.
type Options struct {
	Signals  storage.SignalStore
	Trades   storage.TradeStore
	Ledger   storage.Ledger
	Outcomes storage.TradeOutcomeStore // optional
	Executor Executor
	Notifier Notifier               // optional
	Metrics  *observability.Metrics // optional
	Now      func() time.Time       // Default: time.Now
	Logger   *log.Logger
}

// NewManager creates a new lifecycle manager.
func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		signals:     opts.Signals,
		trades:      opts.Trades,
		ledger:      opts.Ledger,
		outcomes:    opts.Outcomes,
		executor:    opts.Executor,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		now:         now,
		logger:      logger,
		signalLocks: newKeyedMutex(),
		tradeLocks:  newKeyedMutex(),
	}
}

// CreateSignal records a pending signal for an ingested message.
// Returns domain.ErrDuplicateSignal if the message already produced one.
func (m *Manager) CreateSignal(ctx context.Context, msg domain.RawMessage, parsed domain.ParsedSignal) (*domain.Signal, error) {
	ts := m.now().UnixMilli()
	targets := parsed.Targets
	if len(targets) == 0 {
		targets = []float64{parsed.TargetPrice}
	}

	sig := &domain.Signal{
		SignalID:        idhash.ComputeSignalID(msg.ChannelID, msg.ID),
		SourceMessageID: msg.ID,
		ChannelID:       msg.ChannelID,
		Author:          msg.Author,
		Ticker:          parsed.Ticker,
		Direction:       parsed.Direction(),
		EntryPrice:      parsed.EntryPrice,
		StopLossPrice:   parsed.StopLossPrice,
		TargetPrices:    append([]float64(nil), targets...),
		RiskPercent:     parsed.RiskPercent,
		Leverage:        parsed.Leverage,
		Status:          domain.SignalPending,
		RawText:         msg.Text,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}

	if err := m.signals.Insert(ctx, sig); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateSignal
		}
		return nil, fmt.Errorf("create signal: %w", err)
	}

	m.metrics.RecordSignalCreated()
	m.logger.Printf("Signal created: %s %s %s entry=%v sl=%v tp=%v (author=%s)",
		short(sig.SignalID), sig.Direction, sig.Ticker, sig.EntryPrice, sig.StopLossPrice, sig.TargetPrice(), sig.Author)
	return sig.Clone(), nil
}

// ExecuteSignal places the order for a pending signal and opens a trade.
//
// Returns domain.ErrNotFound, domain.ErrAlreadyTerminal, or a
// *domain.ExecutionError. On ExecutionError the signal stays pending.
// Once the broker call starts it runs to completion even if ctx is cancelled.
func (m *Manager) ExecuteSignal(ctx context.Context, signalID string, plan decision.Plan) (*domain.Trade, error) {
	unlock := m.signalLocks.Lock(signalID)
	defer unlock()

	sig, err := m.signals.GetByID(ctx, signalID)
	if err != nil {
		return nil, mapStoreErr(err, "get signal")
	}
	if sig.Status != domain.SignalPending {
		return nil, domain.ErrAlreadyTerminal
	}
	if plan.Amount <= 0 || plan.Leverage <= 0 {
		return nil, fmt.Errorf("execute signal %s: invalid plan amount=%v leverage=%v", signalID, plan.Amount, plan.Leverage)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := domain.Order{
		ClientOrderID: uuid.NewString(),
		Ticker:        sig.Ticker,
		Direction:     sig.Direction,
		EntryPrice:    sig.EntryPrice,
		StopPrice:     sig.StopLossPrice,
		TargetPrice:   sig.TargetPrice(),
		Amount:        plan.Amount,
		Leverage:      plan.Leverage,
	}

	callCtx := context.WithoutCancel(ctx)
	fill, err := m.executor.Execute(callCtx, order)
	if err != nil {
		m.metrics.RecordExecutionError()
		if !domain.IsExecutionError(err) {
			err = &domain.ExecutionError{Ticker: sig.Ticker, Err: err}
		}
		m.logger.Printf("Execution failed for signal %s: %v", signalID, err)
		return nil, err
	}

	entry := sig.EntryPrice
	if fill != nil && fill.FillPrice > 0 {
		entry = fill.FillPrice
	}
	var orderIDs []string
	if fill != nil {
		orderIDs = append(orderIDs, fill.OrderIDs...)
	}

	trade := &domain.Trade{
		TradeID:     idhash.ComputeTradeID(signalID),
		SignalID:    signalID,
		Ticker:      sig.Ticker,
		Direction:   sig.Direction,
		Leverage:    plan.Leverage,
		EntryPrice:  entry,
		TargetPrice: sig.TargetPrice(),
		StopPrice:   sig.StopLossPrice,
		Amount:      plan.Amount,
		Status:      domain.TradeOpen,
		OpenedAt:    m.now().UnixMilli(),
		OrderIDs:    orderIDs,
	}

	if err := m.ledger.RecordExecution(callCtx, signalID, trade); err != nil {
		// The broker already filled; needs manual reconciliation.
		m.logger.Printf("CRITICAL: order %s filled but execution not recorded for signal %s: %v",
			order.ClientOrderID, signalID, err)
		return nil, mapStoreErr(err, "record execution")
	}

	m.metrics.RecordTradeOpened()
	m.logger.Printf("Trade opened: %s %s %s entry=%v amount=%v leverage=%vx",
		short(trade.TradeID), trade.Direction, trade.Ticker, trade.EntryPrice, trade.Amount, trade.Leverage)

	if m.notifier != nil {
		if err := m.notifier.TradeOpened(callCtx, trade); err != nil {
			m.logger.Printf("Error notifying trade open %s: %v", trade.TradeID, err)
		}
	}
	return trade.Clone(), nil
}

// IgnoreSignal marks a pending signal ignored with reason.
// Returns domain.ErrNotFound or domain.ErrAlreadyTerminal.
func (m *Manager) IgnoreSignal(ctx context.Context, signalID, reason string) error {
	unlock := m.signalLocks.Lock(signalID)
	defer unlock()

	sig, err := m.signals.GetByID(ctx, signalID)
	if err != nil {
		return mapStoreErr(err, "get signal")
	}
	if sig.Status != domain.SignalPending {
		return domain.ErrAlreadyTerminal
	}

	var r *string
	if reason != "" {
		r = &reason
	}
	if err := m.signals.UpdateStatus(ctx, signalID, domain.SignalPending, domain.SignalIgnored, r, m.now().UnixMilli()); err != nil {
		return mapStoreErr(err, "ignore signal")
	}

	m.logger.Printf("Signal ignored: %s (%s)", signalID, reason)
	return nil
}

// CloseTrade closes an open trade at closePrice and records realized P&L.
// Returns domain.ErrNotFound or domain.ErrAlreadyClosed.
func (m *Manager) CloseTrade(ctx context.Context, tradeID string, reason domain.CloseReason, closePrice float64) (*domain.Trade, error) {
	if !reason.IsValid() {
		return nil, fmt.Errorf("close trade %s: invalid reason %q", tradeID, reason)
	}
	if closePrice <= 0 {
		return nil, fmt.Errorf("close trade %s: invalid close price %v", tradeID, closePrice)
	}

	unlock := m.tradeLocks.Lock(tradeID)
	defer unlock()

	trade, err := m.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, mapStoreErr(err, "get trade")
	}
	if trade.Status != domain.TradeOpen {
		return nil, domain.ErrAlreadyClosed
	}

	pnl, pct := ComputePnL(trade.Direction, trade.EntryPrice, closePrice, trade.Amount, trade.Leverage)
	closedAt := m.now().UnixMilli()

	closed := trade.Clone()
	closed.Status = domain.TradeClosed
	closed.ClosedAt = &closedAt
	closed.CloseReason = &reason
	closed.ClosePrice = &closePrice
	closed.PnLAmount = &pnl
	closed.PnLPercent = &pct

	if err := m.trades.Close(ctx, closed); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, domain.ErrAlreadyClosed
		}
		return nil, mapStoreErr(err, "close trade")
	}

	m.metrics.RecordTradeClosed(string(reason), pct)
	m.logger.Printf("Trade closed: %s %s %s reason=%s close=%v pnl=%v (%v%%)",
		short(tradeID), closed.Direction, closed.Ticker, reason, closePrice, pnl, pct)

	if m.outcomes != nil {
		if o, ok := domain.OutcomeFromTrade(closed); ok {
			if err := m.outcomes.Insert(ctx, o); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				m.logger.Printf("Error storing trade outcome %s: %v", tradeID, err)
			}
		}
	}
	if m.notifier != nil {
		if err := m.notifier.TradeClosed(ctx, closed); err != nil {
			m.logger.Printf("Error notifying trade close %s: %v", tradeID, err)
		}
	}
	return closed, nil
}

// GetSignal returns a signal by id.
func (m *Manager) GetSignal(ctx context.Context, signalID string) (*domain.Signal, error) {
	sig, err := m.signals.GetByID(ctx, signalID)
	if err != nil {
		return nil, mapStoreErr(err, "get signal")
	}
	return sig, nil
}

// GetTrade returns a trade by id.
func (m *Manager) GetTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	t, err := m.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, mapStoreErr(err, "get trade")
	}
	return t, nil
}

// ListSignals returns signals in status, oldest first.
func (m *Manager) ListSignals(ctx context.Context, status domain.SignalStatus) ([]*domain.Signal, error) {
	sigs, err := m.signals.GetByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return sigs, nil
}

// ListOpenTrades returns all open trades, oldest first.
func (m *Manager) ListOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	trades, err := m.trades.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open trades: %w", err)
	}
	return trades, nil
}

// ListClosedTrades returns trades closed within [start, end] ms.
func (m *Manager) ListClosedTrades(ctx context.Context, start, end int64) ([]*domain.Trade, error) {
	trades, err := m.trades.GetClosed(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list closed trades: %w", err)
	}
	return trades, nil
}

// OpenTradeCount returns the number of open trades.
func (m *Manager) OpenTradeCount(ctx context.Context) (int, error) {
	n, err := m.trades.CountOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return n, nil
}

// short abbreviates a hash id for log lines.
func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// mapStoreErr translates storage sentinels into lifecycle errors.
func mapStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrAlreadyTerminal
	case errors.Is(err, storage.ErrDuplicateKey):
		return domain.ErrAlreadyTerminal
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
