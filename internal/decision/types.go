package decision

import "context"

// Outcome is the result of evaluating a signal against the risk policy.
type Outcome string

const (
	OutcomeExecute Outcome = "execute"
	OutcomeSkip    Outcome = "skip"
)

// Check names one policy check. Checks run in declaration order.
type Check string

const (
	CheckDirection   Check = "direction"
	CheckTicker      Check = "ticker"
	CheckMarketCap   Check = "market_cap"
	CheckRiskReward  Check = "risk_reward"
	CheckAutoExecute Check = "auto_execute"
	CheckCapacity    Check = "capacity"
)

// IsFilter reports whether a failure of c rejects the signal outright.
// Auto-execute and capacity failures leave the signal eligible for later.
func (c Check) IsFilter() bool {
	switch c {
	case CheckDirection, CheckTicker, CheckMarketCap, CheckRiskReward:
		return true
	}
	return false
}

// ReasonManualConfirmation is the skip reason when auto-execute is off.
const ReasonManualConfirmation = "manual-confirmation-required"

// MarketCapLookup resolves a ticker's market capitalization in USD.
type MarketCapLookup interface {
	MarketCap(ctx context.Context, ticker string) (float64, error)
}

// Env carries the runtime state a decision depends on.
type Env struct {
	OpenTrades int
	MarketCap  MarketCapLookup // required when the market-cap filter is enabled
}

// CriterionResult represents pass/fail for one check.
type CriterionResult struct {
	Name      Check
	Threshold string
	Actual    string
	Pass      bool
}

// Decision is the outcome with a human-readable reason.
// Criteria lists every check that ran, ending with the failing one on skip.
type Decision struct {
	Outcome     Outcome
	Reason      string
	FailedCheck Check // empty on execute
	Criteria    []CriterionResult
}

// Execute reports whether the signal should be executed.
func (d Decision) Execute() bool {
	return d.Outcome == OutcomeExecute
}

// Plan is the position sizing applied to an executed signal.
type Plan struct {
	Amount   float64 // margin in quote currency
	Leverage float64
}
