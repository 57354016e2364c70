// Package watcher closes open trades when the market reaches their target or
// stop.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/observability"
)

// DefaultInterval is the polling interval.
const DefaultInterval = 15 * time.Second

// PriceSource returns the current price of a ticker.
type PriceSource interface {
	Price(ctx context.Context, ticker string) (float64, error)
}

// Lifecycle is the subset of *lifecycle.Manager the watcher drives.
type Lifecycle interface {
	ListOpenTrades(ctx context.Context) ([]*domain.Trade, error)
	CloseTrade(ctx context.Context, tradeID string, reason domain.CloseReason, closePrice float64) (*domain.Trade, error)
}

// PriceWatcher polls prices for open trades.
type PriceWatcher struct {
	lifecycle Lifecycle
	prices    PriceSource
	risk      func() *domain.RiskConfig
	interval  time.Duration
	metrics   *observability.Metrics
	logger    *log.Logger
}

// Options contains configuration for creating a PriceWatcher.
type Options struct {
	Lifecycle Lifecycle
	Prices    PriceSource
	// Risk returns the active policy; closing only happens when
	// AutoCloseTrades is set.
	Risk     func() *domain.RiskConfig
	Interval time.Duration // Default: 15s
	Metrics  *observability.Metrics
	Logger   *log.Logger
}

// New creates a price watcher.
func New(opts Options) *PriceWatcher {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PriceWatcher{
		lifecycle: opts.Lifecycle,
		prices:    opts.Prices,
		risk:      opts.Risk,
		interval:  interval,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Run checks open trades every interval until ctx is cancelled.
func (w *PriceWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Printf("Price watcher started, interval: %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("Price watcher stopping...")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil && ctx.Err() == nil {
				w.logger.Printf("Price check failed: %v", err)
			}
		}
	}
}

// Check evaluates every open trade once and returns how many were closed.
// Price lookup failures skip the affected trades.
func (w *PriceWatcher) Check(ctx context.Context) (int, error) {
	trades, err := w.lifecycle.ListOpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open trades: %w", err)
	}
	w.metrics.SetOpenTrades(len(trades))

	if w.risk != nil && !w.risk().AutoCloseTrades {
		return 0, nil
	}

	prices := make(map[string]float64)
	closed := 0
	for _, t := range trades {
		price, ok := prices[t.Ticker]
		if !ok {
			p, err := w.prices.Price(ctx, t.Ticker)
			if err != nil {
				w.logger.Printf("Price lookup failed for %s: %v", t.Ticker, err)
				prices[t.Ticker] = 0
				continue
			}
			prices[t.Ticker], price = p, p
		}
		if price <= 0 {
			continue
		}

		reason, level, hit := Trigger(t, price)
		if !hit {
			continue
		}

		_, err := w.lifecycle.CloseTrade(ctx, t.TradeID, reason, level)
		switch {
		case errors.Is(err, domain.ErrAlreadyClosed):
			// Closed concurrently, e.g. manually.
		case err != nil:
			w.logger.Printf("Error closing trade %s: %v", t.TradeID, err)
		default:
			closed++
			w.logger.Printf("Trade %s %s %s closed: %s at %v (market %v)", t.TradeID, t.Direction, t.Ticker, reason, level, price)
		}
	}

	if closed > 0 {
		w.metrics.SetOpenTrades(len(trades) - closed)
	}
	return closed, nil
}

// Trigger reports whether price reached the trade's stop or target. The
// close price is the triggered level, where the bracket order fills.
// The stop wins when both are crossed.
func Trigger(t *domain.Trade, price float64) (domain.CloseReason, float64, bool) {
	if t.Direction.IsLong() {
		switch {
		case t.StopPrice > 0 && price <= t.StopPrice:
			return domain.CloseStopLoss, t.StopPrice, true
		case t.TargetPrice > 0 && price >= t.TargetPrice:
			return domain.CloseTargetHit, t.TargetPrice, true
		}
		return "", 0, false
	}
	switch {
	case t.StopPrice > 0 && price >= t.StopPrice:
		return domain.CloseStopLoss, t.StopPrice, true
	case t.TargetPrice > 0 && price <= t.TargetPrice:
		return domain.CloseTargetHit, t.TargetPrice, true
	}
	return "", 0, false
}
