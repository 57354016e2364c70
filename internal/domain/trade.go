package domain

import "fmt"

// TradeStatus is the lifecycle state of a Trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// CloseReason records why a trade was closed.
type CloseReason string

const (
	CloseTargetHit CloseReason = "target_hit"
	CloseStopLoss  CloseReason = "stop_loss"
	CloseManual    CloseReason = "manual"
)

// IsValid checks if the close reason is a valid value.
func (r CloseReason) IsValid() bool {
	return r == CloseTargetHit || r == CloseStopLoss || r == CloseManual
}

// Trade is a tracked position opened from an executed Signal.
// Corresponds to trades table in PostgreSQL.
type Trade struct {
	TradeID     string // PRIMARY KEY, deterministic hash of signal id
	SignalID    string // weak reference to the originating signal
	Ticker      string
	Direction   Direction
	Leverage    float64
	EntryPrice  float64 // acknowledged fill price
	TargetPrice float64
	StopPrice   float64
	Amount      float64 // notional margin committed
	Status      TradeStatus
	OpenedAt    int64    // Unix timestamp in milliseconds
	OrderIDs    []string // identifiers returned by the broker

	// Set only once closed
	ClosedAt    *int64
	CloseReason *CloseReason
	ClosePrice  *float64
	PnLAmount   *float64
	PnLPercent  *float64
}

// Validate checks the open/closed field invariant.
func (t *Trade) Validate() error {
	closedFields := 0
	for _, set := range []bool{t.ClosedAt != nil, t.CloseReason != nil, t.PnLAmount != nil, t.PnLPercent != nil} {
		if set {
			closedFields++
		}
	}

	switch t.Status {
	case TradeOpen:
		if closedFields != 0 {
			return fmt.Errorf("trade %s: open trade has close fields set", t.TradeID)
		}
	case TradeClosed:
		if closedFields != 4 {
			return fmt.Errorf("trade %s: closed trade missing close fields", t.TradeID)
		}
	default:
		return fmt.Errorf("trade %s: unknown status %q", t.TradeID, t.Status)
	}
	return nil
}

// Clone returns a deep copy.
func (t *Trade) Clone() *Trade {
	c := *t
	c.OrderIDs = append([]string(nil), t.OrderIDs...)
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		c.ClosedAt = &v
	}
	if t.CloseReason != nil {
		v := *t.CloseReason
		c.CloseReason = &v
	}
	if t.ClosePrice != nil {
		v := *t.ClosePrice
		c.ClosePrice = &v
	}
	if t.PnLAmount != nil {
		v := *t.PnLAmount
		c.PnLAmount = &v
	}
	if t.PnLPercent != nil {
		v := *t.PnLPercent
		c.PnLPercent = &v
	}
	return &c
}
