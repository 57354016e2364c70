package memory

import (
	"context"
	"sort"
	"sync"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Trade // keyed by trade_id
	bySignal map[string]string        // signal_id -> trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:     make(map[string]*domain.Trade),
		bySignal: make(map[string]string),
	}
}

// GetByID retrieves a trade by its ID.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[tradeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// GetBySignalID retrieves the trade opened from a signal.
func (s *TradeStore) GetBySignalID(_ context.Context, signalID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySignal[signalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.data[id].Clone(), nil
}

// GetOpen retrieves all open trades, ordered by opened_at ASC.
func (s *TradeStore) GetOpen(_ context.Context) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Status == domain.TradeOpen {
			result = append(result, t.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OpenedAt != result[j].OpenedAt {
			return result[i].OpenedAt < result[j].OpenedAt
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}

// GetClosed retrieves closed trades with closed_at in [start, end].
func (s *TradeStore) GetClosed(_ context.Context, start, end int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Status == domain.TradeClosed && *t.ClosedAt >= start && *t.ClosedAt <= end {
			result = append(result, t.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return *result[i].ClosedAt < *result[j].ClosedAt
	})
	return result, nil
}

// CountOpen returns the number of open trades.
func (s *TradeStore) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.data {
		if t.Status == domain.TradeOpen {
			n++
		}
	}
	return n, nil
}

// Close writes close fields and sets status closed.
func (s *TradeStore) Close(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Status != domain.TradeClosed || t.Validate() != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[t.TradeID]
	if !ok {
		return storage.ErrNotFound
	}
	if existing.Status != domain.TradeOpen {
		return storage.ErrConflict
	}

	src := t.Clone()
	closed := existing.Clone()
	closed.Status = domain.TradeClosed
	closed.ClosedAt = src.ClosedAt
	closed.CloseReason = src.CloseReason
	closed.ClosePrice = src.ClosePrice
	closed.PnLAmount = src.PnLAmount
	closed.PnLPercent = src.PnLPercent
	s.data[t.TradeID] = closed
	return nil
}

// insertLocked requires s.mu held for writing.
func (s *TradeStore) insertLocked(t *domain.Trade) error {
	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.bySignal[t.SignalID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[t.TradeID] = t.Clone()
	s.bySignal[t.SignalID] = t.TradeID
	return nil
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)
