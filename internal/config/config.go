// Package config loads the trading policy and trader allow-list from YAML
// and publishes them as immutable snapshots.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"signal-trader/internal/domain"
	"signal-trader/internal/traders"
)

// DefaultTraders is the allow-list used when the file names none.
const DefaultTraders = "@yramki, @Tareeq"

// File is the on-disk configuration layout.
type File struct {
	Risk    RiskSection    `yaml:"risk"`
	Traders TradersSection `yaml:"traders"`
}

// RiskSection mirrors domain.RiskConfig.
type RiskSection struct {
	AmountPerTrade        float64  `yaml:"amount_per_trade"`
	MaxPositionSize       float64  `yaml:"max_position_size"`
	DefaultLeverage       float64  `yaml:"default_leverage"`
	MaxLeverage           float64  `yaml:"max_leverage"`
	UseSignalLeverage     bool     `yaml:"use_signal_leverage"`
	AllowLong             bool     `yaml:"allow_long"`
	AllowShort            bool     `yaml:"allow_short"`
	MinRiskReward         *float64 `yaml:"min_risk_reward"` // omitted = any
	AllowedTickers        []string `yaml:"allowed_tickers"`
	EnableMarketCapFilter bool     `yaml:"enable_market_cap_filter"`
	MinMarketCap          float64  `yaml:"min_market_cap"`
	MaxSimultaneousTrades int      `yaml:"max_simultaneous_trades"`
	AutoExecute           bool     `yaml:"auto_execute"`
	AutoCloseTrades       bool     `yaml:"auto_close_trades"`
}

// TradersSection configures author matching.
type TradersSection struct {
	Handles   string  `yaml:"handles"` // comma-separated, e.g. "@yramki, @Tareeq"
	Enforce   bool    `yaml:"enforce"`
	Threshold float64 `yaml:"threshold"`
}

// Default returns the configuration used when no file is present.
func Default() File {
	r := domain.DefaultRiskConfig()
	return File{
		Risk: RiskSection{
			AmountPerTrade:        r.AmountPerTrade,
			MaxPositionSize:       r.MaxPositionSize,
			DefaultLeverage:       r.DefaultLeverage,
			MaxLeverage:           r.MaxLeverage,
			UseSignalLeverage:     r.UseSignalLeverage,
			AllowLong:             r.AllowLong,
			AllowShort:            r.AllowShort,
			MinRiskReward:         r.MinRiskReward,
			AllowedTickers:        r.AllowedTickers,
			EnableMarketCapFilter: r.EnableMarketCapFilter,
			MinMarketCap:          r.MinMarketCap,
			MaxSimultaneousTrades: r.MaxSimultaneousTrades,
			AutoExecute:           r.AutoExecute,
			AutoCloseTrades:       r.AutoCloseTrades,
		},
		Traders: TradersSection{
			Handles:   DefaultTraders,
			Enforce:   true,
			Threshold: traders.DefaultThreshold,
		},
	}
}

// Parse decodes data over the defaults and validates the result.
// Keys absent from data keep their default values.
func Parse(data []byte) (File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, fmt.Errorf("invalid config: %w", err)
	}
	return f, nil
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate checks the policy and the allow-list.
func (f File) Validate() error {
	r := f.RiskConfig()
	if err := r.Validate(); err != nil {
		return err
	}
	if f.Traders.Threshold < 0 || f.Traders.Threshold > 1 {
		return fmt.Errorf("trader threshold must be in [0,1], got %v", f.Traders.Threshold)
	}
	if f.Traders.Enforce && len(traders.ParseHandles(f.Traders.Handles)) == 0 {
		return errors.New("trader allow-list is enforced but empty")
	}
	return nil
}

// RiskConfig converts the risk section to a domain snapshot.
func (f File) RiskConfig() domain.RiskConfig {
	r := f.Risk
	cfg := domain.RiskConfig{
		AmountPerTrade:        r.AmountPerTrade,
		MaxPositionSize:       r.MaxPositionSize,
		DefaultLeverage:       r.DefaultLeverage,
		MaxLeverage:           r.MaxLeverage,
		UseSignalLeverage:     r.UseSignalLeverage,
		AllowLong:             r.AllowLong,
		AllowShort:            r.AllowShort,
		AllowedTickers:        append([]string(nil), r.AllowedTickers...),
		EnableMarketCapFilter: r.EnableMarketCapFilter,
		MinMarketCap:          r.MinMarketCap,
		MaxSimultaneousTrades: r.MaxSimultaneousTrades,
		AutoExecute:           r.AutoExecute,
		AutoCloseTrades:       r.AutoCloseTrades,
	}
	if r.MinRiskReward != nil {
		v := *r.MinRiskReward
		cfg.MinRiskReward = &v
	}
	return cfg
}

// TraderAllowList converts the traders section to a domain snapshot.
func (f File) TraderAllowList() domain.TraderAllowList {
	return domain.TraderAllowList{
		Traders:   traders.ParseHandles(f.Traders.Handles),
		Enforce:   f.Traders.Enforce,
		Threshold: f.Traders.Threshold,
	}
}
