// Package metrics computes trading performance statistics from closed-trade
// outcomes.
package metrics

import (
	"context"
	"errors"
	"sort"

	"signal-trader/internal/domain"
)

// ErrNoTrades is returned when no outcomes fall in the requested range.
var ErrNoTrades = errors.New("no trades available for aggregation")

// OutcomeSource loads closed-trade outcomes. storage.TradeOutcomeStore
// implements it.
type OutcomeSource interface {
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeOutcome, error)
}

// Breakdown is the overall statistics plus per-group splits for a range.
type Breakdown struct {
	From    int64 // Unix ms
	To      int64 // Unix ms
	Overall *Stats

	ByTicker      []*Stats
	ByDirection   []*Stats
	ByCloseReason []*Stats

	// Outcomes in chronological order.
	Outcomes []*domain.TradeOutcome
}

// Aggregator computes breakdowns from stored outcomes.
type Aggregator struct {
	source OutcomeSource
}

// NewAggregator creates a new aggregator.
func NewAggregator(source OutcomeSource) *Aggregator {
	return &Aggregator{source: source}
}

// Compute loads outcomes closed within [start, end] ms and computes the
// breakdown. Returns ErrNoTrades if none match.
func (a *Aggregator) Compute(ctx context.Context, start, end int64) (*Breakdown, error) {
	outcomes, err := a.source.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return nil, ErrNoTrades
	}

	b := &Breakdown{
		From:          start,
		To:            end,
		Overall:       Compute(outcomes),
		ByTicker:      GroupBy(outcomes, func(o *domain.TradeOutcome) string { return o.Ticker }),
		ByDirection:   GroupBy(outcomes, func(o *domain.TradeOutcome) string { return string(o.Direction) }),
		ByCloseReason: GroupBy(outcomes, func(o *domain.TradeOutcome) string { return string(o.CloseReason) }),
		Outcomes:      outcomes,
	}
	return b, nil
}

// GroupBy computes Stats per distinct key, sorted by key ASC.
func GroupBy(outcomes []*domain.TradeOutcome, key func(*domain.TradeOutcome) string) []*Stats {
	groups := make(map[string][]*domain.TradeOutcome)
	for _, o := range outcomes {
		k := key(o)
		groups[k] = append(groups[k], o)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*Stats, 0, len(keys))
	for _, k := range keys {
		s := Compute(groups[k])
		s.Key = k
		result = append(result, s)
	}
	return result
}
