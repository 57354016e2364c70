package domain

import (
	"fmt"
	"strings"
)

// RiskConfig is the active trading policy.
// A RiskConfig value is treated as immutable once published; updates
// replace the whole snapshot.
type RiskConfig struct {
	AmountPerTrade  float64 // margin per trade, quote currency
	MaxPositionSize float64 // hard cap on AmountPerTrade

	DefaultLeverage   float64
	MaxLeverage       float64 // caps signal leverage
	UseSignalLeverage bool

	AllowLong  bool
	AllowShort bool

	MinRiskReward  *float64 // nil = any
	AllowedTickers []string // empty = all allowed

	EnableMarketCapFilter bool
	MinMarketCap          float64 // USD

	MaxSimultaneousTrades int
	AutoExecute           bool
	AutoCloseTrades       bool
}

// DefaultRiskConfig returns the policy used when no configuration file is present.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		AmountPerTrade:        100,
		MaxPositionSize:       500,
		DefaultLeverage:       5,
		MaxLeverage:           20,
		UseSignalLeverage:     true,
		AllowLong:             true,
		AllowShort:            true,
		EnableMarketCapFilter: true,
		MinMarketCap:          1_000_000,
		MaxSimultaneousTrades: 5,
		AutoExecute:           false,
		AutoCloseTrades:       true,
	}
}

// Validate checks that the policy is internally consistent.
func (c *RiskConfig) Validate() error {
	if c.AmountPerTrade <= 0 {
		return fmt.Errorf("amount per trade must be positive, got %v", c.AmountPerTrade)
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("max position size must be positive, got %v", c.MaxPositionSize)
	}
	if c.DefaultLeverage < 1 {
		return fmt.Errorf("default leverage must be >= 1, got %v", c.DefaultLeverage)
	}
	if c.MaxLeverage < c.DefaultLeverage {
		return fmt.Errorf("max leverage %v below default leverage %v", c.MaxLeverage, c.DefaultLeverage)
	}
	if c.MinRiskReward != nil && *c.MinRiskReward < 0 {
		return fmt.Errorf("min risk:reward must be >= 0, got %v", *c.MinRiskReward)
	}
	if c.MinMarketCap < 0 {
		return fmt.Errorf("min market cap must be >= 0, got %v", c.MinMarketCap)
	}
	if c.MaxSimultaneousTrades < 0 {
		return fmt.Errorf("max simultaneous trades must be >= 0, got %d", c.MaxSimultaneousTrades)
	}
	return nil
}

// TickerAllowed reports whether ticker passes the allow-list.
func (c *RiskConfig) TickerAllowed(ticker string) bool {
	if len(c.AllowedTickers) == 0 {
		return true
	}
	for _, t := range c.AllowedTickers {
		if strings.EqualFold(t, ticker) {
			return true
		}
	}
	return false
}
