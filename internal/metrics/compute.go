package metrics

import (
	"math"
	"sort"

	"signal-trader/internal/domain"
)

// Stats summarizes a set of closed trades. P&L distribution fields are in
// percent of margin; TotalPnL and MaxDrawdown are in quote currency.
type Stats struct {
	Key string // group value, empty for the overall set

	// Counts
	TotalTrades   int
	Wins          int
	Losses        int
	WinRate       float64
	TotalTickers  int
	TickerWinRate float64 // tickers with at least one winning trade / tickers

	// P&L distribution
	TotalPnL  float64
	PnLMean   float64
	PnLMedian float64
	PnLP10    float64
	PnLP25    float64
	PnLP75    float64
	PnLP90    float64
	PnLMin    float64
	PnLMax    float64
	PnLStddev float64

	// Order-dependent
	MaxDrawdown          float64
	MaxConsecutiveLosses int

	AvgHoldMs int64
}

// Compute calculates all statistics for outcomes. Outcomes are sorted by
// ClosedAt ASC, TradeID ASC before order-dependent metrics are computed.
func Compute(outcomes []*domain.TradeOutcome) *Stats {
	n := len(outcomes)
	if n == 0 {
		return &Stats{}
	}

	sorted := make([]*domain.TradeOutcome, n)
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ClosedAt != sorted[j].ClosedAt {
			return sorted[i].ClosedAt < sorted[j].ClosedAt
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	wins := 0
	totalPnL := 0.0
	var holdSum int64
	percents := make([]float64, n)
	amounts := make([]float64, n)
	for i, o := range sorted {
		if o.PnLAmount > 0 {
			wins++
		}
		totalPnL += o.PnLAmount
		holdSum += o.HoldDurationMs
		percents[i] = o.PnLPercent
		amounts[i] = o.PnLAmount
	}

	ordered := make([]float64, n)
	copy(ordered, percents)
	sort.Float64s(ordered)

	mean := computeMean(percents)
	tickers, tickerWinRate := computeTickerWinRate(sorted)

	return &Stats{
		TotalTrades:   n,
		Wins:          wins,
		Losses:        n - wins,
		WinRate:       computeWinRate(wins, n),
		TotalTickers:  tickers,
		TickerWinRate: tickerWinRate,

		TotalPnL:  totalPnL,
		PnLMean:   mean,
		PnLMedian: computePercentile(ordered, 0.50),
		PnLP10:    computePercentile(ordered, 0.10),
		PnLP25:    computePercentile(ordered, 0.25),
		PnLP75:    computePercentile(ordered, 0.75),
		PnLP90:    computePercentile(ordered, 0.90),
		PnLMin:    ordered[0],
		PnLMax:    ordered[n-1],
		PnLStddev: computeStddev(percents, mean),

		MaxDrawdown:          computeMaxDrawdown(amounts),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(amounts),

		AvgHoldMs: holdSum / int64(n),
	}
}

// computeTickerWinRate returns the number of distinct tickers and the share
// of them with at least one positive trade.
func computeTickerWinRate(outcomes []*domain.TradeOutcome) (int, float64) {
	if len(outcomes) == 0 {
		return 0, 0
	}

	won := make(map[string]bool)
	for _, o := range outcomes {
		won[o.Ticker] = won[o.Ticker] || o.PnLAmount > 0
	}

	winning := 0
	for _, w := range won {
		if w {
			winning++
		}
	}
	return len(won), float64(winning) / float64(len(won))
}

func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative P&L.
// Values must be in chronological order.
func computeMaxDrawdown(values []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range values {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of P&L <= 0.
// Values must be in chronological order.
func computeMaxConsecutiveLosses(values []float64) int {
	maxStreak := 0
	streak := 0

	for _, v := range values {
		if v <= 0 {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}
