package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/metrics"
)

// DefaultTopN is the number of best and worst trades listed.
const DefaultTopN = 5

// Generator produces reports from stored outcomes.
type Generator struct {
	aggregator *metrics.Aggregator
	topN       int
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(source metrics.OutcomeSource) *Generator {
	return &Generator{
		aggregator: metrics.NewAggregator(source),
		topN:       DefaultTopN,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopN sets how many best and worst trades are listed.
func (g *Generator) WithTopN(n int) *Generator {
	g.topN = n
	return g
}

// Generate produces a report for trades closed within [from, to] ms.
// An empty range yields a report with zero statistics.
func (g *Generator) Generate(ctx context.Context, from, to int64) (*Report, error) {
	r := &Report{
		GeneratedAt: g.now(),
		From:        from,
		To:          to,
		Overall:     &metrics.Stats{},
	}

	b, err := g.aggregator.Compute(ctx, from, to)
	if errors.Is(err, metrics.ErrNoTrades) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	r.Overall = b.Overall
	r.ByTicker = b.ByTicker
	r.ByDirection = b.ByDirection
	r.ByCloseReason = b.ByCloseReason
	r.Trades = b.Outcomes
	r.Best, r.Worst = extremes(b.Outcomes, g.topN)
	return r, nil
}

// extremes returns the n best and n worst trades by P&L percent.
// Ties break by TradeID for deterministic output.
func extremes(outcomes []*domain.TradeOutcome, n int) (best, worst []*domain.TradeOutcome) {
	ranked := make([]*domain.TradeOutcome, len(outcomes))
	copy(ranked, outcomes)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PnLPercent != ranked[j].PnLPercent {
			return ranked[i].PnLPercent > ranked[j].PnLPercent
		}
		return ranked[i].TradeID < ranked[j].TradeID
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	best = append(best, ranked[:n]...)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		worst = append(worst, ranked[i])
	}
	return best, worst
}
