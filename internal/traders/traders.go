// Package traders scores message authors against the trader allow-list.
package traders

import (
	"strings"

	"signal-trader/internal/domain"
	"signal-trader/internal/fuzzy"
)

// DefaultThreshold is the minimum similarity for a fuzzy handle match.
const DefaultThreshold = 0.8

// Match returns the best-scoring enabled trader whose similarity to author is
// at or above the list threshold. When the list is not enforced every author
// matches with score 1, reported as a Trader carrying the author handle.
func Match(list domain.TraderAllowList, author string) (domain.Trader, float64, bool) {
	if !list.Enforce {
		return domain.Trader{Handle: author, Enabled: true}, 1, true
	}

	threshold := list.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var (
		best      domain.Trader
		bestScore float64
		found     bool
	)
	for _, t := range list.Traders {
		if !t.Enabled {
			continue
		}
		score := fuzzy.Similarity(t.Handle, author)
		if score >= threshold && score > bestScore {
			best, bestScore, found = t, score, true
		}
	}
	return best, bestScore, found
}

// ParseHandles splits a comma-separated handle list ("@yramki, @Tareeq")
// into enabled allow-list entries.
func ParseHandles(csv string) []domain.Trader {
	var out []domain.Trader
	for _, h := range strings.Split(csv, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		out = append(out, domain.Trader{Handle: h, Enabled: true})
	}
	return out
}
