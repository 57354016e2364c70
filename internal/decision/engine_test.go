package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"signal-trader/internal/domain"
)

type fakeMarketCap struct {
	value float64
	err   error
	calls int
}

func (f *fakeMarketCap) MarketCap(_ context.Context, _ string) (float64, error) {
	f.calls++
	return f.value, f.err
}

func btcLong() domain.ParsedSignal {
	return domain.ParsedSignal{
		Ticker:        "BTC",
		IsLong:        true,
		EntryPrice:    67500,
		StopLossPrice: 65200,
		TargetPrice:   70000,
		Targets:       []float64{70000},
		RiskPercent:   1,
	}
}

func permissive() *domain.RiskConfig {
	cfg := domain.DefaultRiskConfig()
	cfg.AutoExecute = true
	cfg.EnableMarketCapFilter = false
	return &cfg
}

func ptr[T any](v T) *T {
	return &v
}

func TestDecide_Execute(t *testing.T) {
	d := Decide(context.Background(), btcLong(), permissive(), Env{OpenTrades: 0})

	if !d.Execute() {
		t.Fatalf("Expected execute, got skip: %s", d.Reason)
	}
	if d.FailedCheck != "" {
		t.Errorf("FailedCheck = %q, want empty", d.FailedCheck)
	}
	for _, c := range d.Criteria {
		if !c.Pass {
			t.Errorf("criterion %s should pass", c.Name)
		}
	}
}

func TestDecide_DirectionNotAllowed(t *testing.T) {
	cfg := permissive()
	cfg.AllowLong = false

	d := Decide(context.Background(), btcLong(), cfg, Env{})

	if d.Execute() {
		t.Fatal("Expected skip for disallowed long")
	}
	if d.FailedCheck != CheckDirection {
		t.Errorf("FailedCheck = %s, want direction", d.FailedCheck)
	}
	if !strings.Contains(d.Reason, "direction") {
		t.Errorf("Reason %q should mention direction", d.Reason)
	}
	if len(d.Criteria) != 1 {
		t.Errorf("Expected evaluation to stop at first check, got %d criteria", len(d.Criteria))
	}
}

func TestDecide_Order(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *domain.RiskConfig, env *Env)
		want   Check
	}{
		{
			name: "direction wins over ticker",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.AllowLong = false
				cfg.AllowedTickers = []string{"ETH"}
			},
			want: CheckDirection,
		},
		{
			name: "ticker not allowed",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.AllowedTickers = []string{"ETH", "SOL"}
			},
			want: CheckTicker,
		},
		{
			name: "market cap below minimum",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.EnableMarketCapFilter = true
				env.MarketCap = &fakeMarketCap{value: 500_000}
			},
			want: CheckMarketCap,
		},
		{
			name: "market cap lookup failure skips",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.EnableMarketCapFilter = true
				env.MarketCap = &fakeMarketCap{err: errors.New("rate limited")}
			},
			want: CheckMarketCap,
		},
		{
			name: "market cap filter without lookup skips",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.EnableMarketCapFilter = true
			},
			want: CheckMarketCap,
		},
		{
			name: "filter reason beats manual confirmation",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.AutoExecute = false
				cfg.MinRiskReward = ptr(5.0)
			},
			want: CheckRiskReward,
		},
		{
			name: "manual confirmation",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.AutoExecute = false
				env.OpenTrades = 99
			},
			want: CheckAutoExecute,
		},
		{
			name: "capacity",
			mutate: func(cfg *domain.RiskConfig, env *Env) {
				cfg.MaxSimultaneousTrades = 2
				env.OpenTrades = 2
			},
			want: CheckCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := permissive()
			env := Env{}
			tt.mutate(cfg, &env)

			d := Decide(context.Background(), btcLong(), cfg, env)
			if d.Execute() {
				t.Fatalf("Expected skip, got execute")
			}
			if d.FailedCheck != tt.want {
				t.Errorf("FailedCheck = %s, want %s (reason %q)", d.FailedCheck, tt.want, d.Reason)
			}
		})
	}
}

func TestDecide_ManualConfirmationReason(t *testing.T) {
	cfg := permissive()
	cfg.AutoExecute = false

	d := Decide(context.Background(), btcLong(), cfg, Env{})
	if d.Reason != ReasonManualConfirmation {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonManualConfirmation)
	}
	if d.FailedCheck.IsFilter() {
		t.Error("manual confirmation must not be a filter failure")
	}
}

func TestDecide_MarketCapPasses(t *testing.T) {
	cfg := permissive()
	cfg.EnableMarketCapFilter = true
	lookup := &fakeMarketCap{value: 1_000_000}

	d := Decide(context.Background(), btcLong(), cfg, Env{MarketCap: lookup})
	if !d.Execute() {
		t.Fatalf("Expected execute at exactly the minimum, got %q", d.Reason)
	}
	if lookup.calls != 1 {
		t.Errorf("lookup calls = %d, want 1", lookup.calls)
	}
}

func TestRiskReward(t *testing.T) {
	tests := []struct {
		name   string
		sig    domain.ParsedSignal
		want   float64
		wantOK bool
	}{
		{
			name:   "long",
			sig:    domain.ParsedSignal{IsLong: true, EntryPrice: 100, StopLossPrice: 90, TargetPrice: 130},
			want:   3,
			wantOK: true,
		},
		{
			name:   "short",
			sig:    domain.ParsedSignal{IsLong: false, EntryPrice: 100, StopLossPrice: 105, TargetPrice: 90},
			want:   2,
			wantOK: true,
		},
		{
			name:   "zero risk distance",
			sig:    domain.ParsedSignal{IsLong: true, EntryPrice: 100, StopLossPrice: 100, TargetPrice: 130},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RiskReward(tt.sig)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("RiskReward = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecide_RiskRewardBoundary(t *testing.T) {
	sig := domain.ParsedSignal{Ticker: "SOL", IsLong: true, EntryPrice: 100, StopLossPrice: 90, TargetPrice: 120}

	tests := []struct {
		min  float64
		want Outcome
	}{
		{1.9, OutcomeExecute},
		{2.0, OutcomeExecute},
		{2.1, OutcomeSkip},
	}

	for _, tt := range tests {
		cfg := permissive()
		cfg.MinRiskReward = ptr(tt.min)
		d := Decide(context.Background(), sig, cfg, Env{})
		if d.Outcome != tt.want {
			t.Errorf("min %.1f: outcome = %s, want %s (%s)", tt.min, d.Outcome, tt.want, d.Reason)
		}
	}

	cfg := permissive()
	cfg.MinRiskReward = ptr(1.0)
	flat := sig
	flat.StopLossPrice = flat.EntryPrice
	if d := Decide(context.Background(), flat, cfg, Env{}); d.Execute() || d.Reason != "zero risk distance" {
		t.Errorf("zero risk distance: got %s %q", d.Outcome, d.Reason)
	}
}

func TestPlanFor(t *testing.T) {
	tests := []struct {
		name         string
		leverage     *float64
		useSignal    bool
		amount       float64
		maxPosition  float64
		wantAmount   float64
		wantLeverage float64
	}{
		{"default leverage", nil, true, 100, 500, 100, 5},
		{"signal leverage", ptr(10.0), true, 100, 500, 100, 10},
		{"signal leverage capped", ptr(50.0), true, 100, 500, 100, 20},
		{"signal leverage ignored", ptr(10.0), false, 100, 500, 100, 5},
		{"amount capped by max position", nil, true, 800, 500, 500, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultRiskConfig()
			cfg.UseSignalLeverage = tt.useSignal
			cfg.AmountPerTrade = tt.amount
			cfg.MaxPositionSize = tt.maxPosition

			sig := btcLong()
			sig.Leverage = tt.leverage

			plan := PlanFor(sig, &cfg)
			if plan.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", plan.Amount, tt.wantAmount)
			}
			if plan.Leverage != tt.wantLeverage {
				t.Errorf("Leverage = %v, want %v", plan.Leverage, tt.wantLeverage)
			}
		})
	}
}
