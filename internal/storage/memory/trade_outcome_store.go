package memory

import (
	"context"
	"sort"
	"sync"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// TradeOutcomeStore is an in-memory implementation of storage.TradeOutcomeStore.
type TradeOutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeOutcome // keyed by trade_id
}

// NewTradeOutcomeStore creates a new in-memory trade outcome store.
func NewTradeOutcomeStore() *TradeOutcomeStore {
	return &TradeOutcomeStore{
		data: make(map[string]*domain.TradeOutcome),
	}
}

// Insert adds a closed-trade outcome. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeOutcomeStore) Insert(_ context.Context, o *domain.TradeOutcome) error {
	if o == nil || o.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *o
	s.data[o.TradeID] = &copy
	return nil
}

// GetByTicker retrieves outcomes for a ticker, ordered by closed_at ASC.
func (s *TradeOutcomeStore) GetByTicker(_ context.Context, ticker string) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeOutcome
	for _, o := range s.data {
		if o.Ticker == ticker {
			copy := *o
			result = append(result, &copy)
		}
	}

	sortByClosedAt(result)
	return result, nil
}

// GetByTimeRange retrieves outcomes closed within [start, end] ms, ordered by closed_at ASC.
func (s *TradeOutcomeStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeOutcome
	for _, o := range s.data {
		if o.ClosedAt >= start && o.ClosedAt <= end {
			copy := *o
			result = append(result, &copy)
		}
	}

	sortByClosedAt(result)
	return result, nil
}

// Summary aggregates outcomes per ticker, ordered by ticker ASC.
func (s *TradeOutcomeStore) Summary(_ context.Context) ([]*domain.OutcomeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTicker := make(map[string]*domain.OutcomeSummary)
	pctSum := make(map[string]float64)
	for _, o := range s.data {
		sum, ok := byTicker[o.Ticker]
		if !ok {
			sum = &domain.OutcomeSummary{Ticker: o.Ticker}
			byTicker[o.Ticker] = sum
		}
		sum.TotalTrades++
		if o.PnLAmount > 0 {
			sum.Wins++
		} else {
			sum.Losses++
		}
		sum.TotalPnL += o.PnLAmount
		pctSum[o.Ticker] += o.PnLPercent
	}

	result := make([]*domain.OutcomeSummary, 0, len(byTicker))
	for ticker, sum := range byTicker {
		sum.AvgPnLPercent = pctSum[ticker] / float64(sum.TotalTrades)
		result = append(result, sum)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})
	return result, nil
}

// Compile-time interface check.
var _ storage.TradeOutcomeStore = (*TradeOutcomeStore)(nil)

func sortByClosedAt(result []*domain.TradeOutcome) {
	sort.Slice(result, func(i, j int) bool {
		if result[i].ClosedAt != result[j].ClosedAt {
			return result[i].ClosedAt < result[j].ClosedAt
		}
		return result[i].TradeID < result[j].TradeID
	})
}
