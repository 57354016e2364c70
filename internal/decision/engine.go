// Package decision evaluates parsed signals against the active risk policy.
package decision

import (
	"context"
	"fmt"
	"math"
	"strings"

	"signal-trader/internal/domain"
)

// Decide evaluates sig against cfg. The first failing check wins.
// Decide has no side effects beyond the market-cap lookup.
func Decide(ctx context.Context, sig domain.ParsedSignal, cfg *domain.RiskConfig, env Env) Decision {
	var criteria []CriterionResult

	skip := func(c CriterionResult, reason string) Decision {
		criteria = append(criteria, c)
		return Decision{Outcome: OutcomeSkip, Reason: reason, FailedCheck: c.Name, Criteria: criteria}
	}

	// 1. Direction
	dir := sig.Direction()
	allowed := (dir.IsLong() && cfg.AllowLong) || (!dir.IsLong() && cfg.AllowShort)
	c := CriterionResult{
		Name:      CheckDirection,
		Threshold: fmt.Sprintf("long=%t short=%t", cfg.AllowLong, cfg.AllowShort),
		Actual:    string(dir),
		Pass:      allowed,
	}
	if !c.Pass {
		return skip(c, fmt.Sprintf("direction %s not allowed", dir))
	}
	criteria = append(criteria, c)

	// 2. Ticker
	c = CriterionResult{
		Name:      CheckTicker,
		Threshold: tickerThreshold(cfg.AllowedTickers),
		Actual:    sig.Ticker,
		Pass:      cfg.TickerAllowed(sig.Ticker),
	}
	if !c.Pass {
		return skip(c, fmt.Sprintf("ticker %s not in allowed list", sig.Ticker))
	}
	criteria = append(criteria, c)

	// 3. Market cap
	if cfg.EnableMarketCapFilter {
		c = CriterionResult{
			Name:      CheckMarketCap,
			Threshold: fmt.Sprintf(">= %.0f", cfg.MinMarketCap),
		}
		if env.MarketCap == nil {
			c.Actual = "unavailable"
			return skip(c, "market cap lookup unavailable")
		}
		mcap, err := env.MarketCap.MarketCap(ctx, sig.Ticker)
		if err != nil {
			c.Actual = "lookup failed"
			return skip(c, fmt.Sprintf("market cap lookup failed: %v", err))
		}
		c.Actual = fmt.Sprintf("%.0f", mcap)
		c.Pass = mcap >= cfg.MinMarketCap
		if !c.Pass {
			return skip(c, fmt.Sprintf("market cap %.0f below minimum %.0f", mcap, cfg.MinMarketCap))
		}
		criteria = append(criteria, c)
	}

	// 4. Risk:reward
	if cfg.MinRiskReward != nil {
		c = CriterionResult{
			Name:      CheckRiskReward,
			Threshold: fmt.Sprintf(">= %.2f", *cfg.MinRiskReward),
		}
		ratio, ok := RiskReward(sig)
		if !ok {
			c.Actual = "undefined"
			return skip(c, "zero risk distance")
		}
		c.Actual = fmt.Sprintf("%.2f", ratio)
		c.Pass = ratio >= *cfg.MinRiskReward
		if !c.Pass {
			return skip(c, fmt.Sprintf("risk:reward %.2f below minimum %.2f", ratio, *cfg.MinRiskReward))
		}
		criteria = append(criteria, c)
	}

	// 5. Auto-execute
	c = CriterionResult{
		Name:      CheckAutoExecute,
		Threshold: "true",
		Actual:    fmt.Sprintf("%t", cfg.AutoExecute),
		Pass:      cfg.AutoExecute,
	}
	if !c.Pass {
		return skip(c, ReasonManualConfirmation)
	}
	criteria = append(criteria, c)

	// 6. Capacity
	c = CriterionResult{
		Name:      CheckCapacity,
		Threshold: fmt.Sprintf("< %d", cfg.MaxSimultaneousTrades),
		Actual:    fmt.Sprintf("%d", env.OpenTrades),
		Pass:      env.OpenTrades < cfg.MaxSimultaneousTrades,
	}
	if !c.Pass {
		return skip(c, fmt.Sprintf("max simultaneous trades reached (%d)", cfg.MaxSimultaneousTrades))
	}
	criteria = append(criteria, c)

	return Decision{Outcome: OutcomeExecute, Reason: "all checks passed", Criteria: criteria}
}

// RiskReward returns reward/risk for sig. ok is false when the stop sits
// on the entry, which leaves the ratio undefined.
func RiskReward(sig domain.ParsedSignal) (ratio float64, ok bool) {
	risk := math.Abs(sig.EntryPrice - sig.StopLossPrice)
	if risk == 0 {
		return 0, false
	}
	var reward float64
	if sig.IsLong {
		reward = math.Abs(sig.TargetPrice - sig.EntryPrice)
	} else {
		reward = math.Abs(sig.EntryPrice - sig.TargetPrice)
	}
	return reward / risk, true
}

// PlanFor sizes a position for sig under cfg.
func PlanFor(sig domain.ParsedSignal, cfg *domain.RiskConfig) Plan {
	amount := math.Min(cfg.AmountPerTrade, cfg.MaxPositionSize)

	leverage := cfg.DefaultLeverage
	if cfg.UseSignalLeverage && sig.Leverage != nil && *sig.Leverage > 0 {
		leverage = *sig.Leverage
	}
	if cfg.MaxLeverage > 0 && leverage > cfg.MaxLeverage {
		leverage = cfg.MaxLeverage
	}
	if leverage < 1 {
		leverage = 1
	}

	return Plan{Amount: amount, Leverage: leverage}
}

func tickerThreshold(allowed []string) string {
	if len(allowed) == 0 {
		return "any"
	}
	return strings.Join(allowed, ",")
}
