package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/decision"
	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/storage/memory"
)

type fillAtEntry struct {
	calls int
	err   error
}

func (f *fillAtEntry) Execute(_ context.Context, o domain.Order) (*domain.Fill, error) {
	f.calls++
	if f.err != nil {
		return nil, &domain.ExecutionError{Ticker: o.Ticker, Err: f.err}
	}
	return &domain.Fill{OrderIDs: []string{"1"}, FillPrice: o.EntryPrice}, nil
}

type staticMarketCap map[string]float64

func (s staticMarketCap) MarketCap(_ context.Context, ticker string) (float64, error) {
	v, ok := s[ticker]
	if !ok {
		return 0, errors.New("unknown ticker")
	}
	return v, nil
}

type fixture struct {
	pipe    *Pipeline
	mgr     *lifecycle.Manager
	exec    *fillAtEntry
	signals *memory.SignalStore
	cfg     *domain.RiskConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signals := memory.NewSignalStore()
	trades := memory.NewTradeStore()
	exec := &fillAtEntry{}
	logger := log.New(io.Discard, "", 0)

	mgr := lifecycle.NewManager(lifecycle.Options{
		Signals:  signals,
		Trades:   trades,
		Ledger:   memory.NewLedger(signals, trades),
		Executor: exec,
		Logger:   logger,
	})

	cfg := domain.DefaultRiskConfig()
	cfg.AutoExecute = true

	f := &fixture{mgr: mgr, exec: exec, signals: signals, cfg: &cfg}
	f.pipe = New(Options{
		Lifecycle: mgr,
		Risk:      func() *domain.RiskConfig { return f.cfg },
		MarketCap: staticMarketCap{"BTC": 1.3e12, "PEPE": 500_000},
		Logger:    logger,
	})
	return f
}

func detection(id, ticker string, long bool) detector.Detection {
	entry, stop, target := 100.0, 95.0, 115.0
	if !long {
		stop, target = 105.0, 85.0
	}
	return detector.Detection{
		Message: domain.RawMessage{ID: id, Author: "@yramki", ChannelID: "trades", Text: "signal"},
		Parsed: domain.ParsedSignal{
			Ticker:        ticker,
			IsLong:        long,
			EntryPrice:    entry,
			StopLossPrice: stop,
			TargetPrice:   target,
			Targets:       []float64{target},
			RiskPercent:   1,
		},
		Trader: domain.Trader{Handle: "@yramki", Enabled: true},
		Score:  1,
	}
}

func TestProcess_Executes(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipe.Process(context.Background(), detection("m1", "BTC", true))
	require.NoError(t, err)
	require.NotNil(t, res.Trade)
	assert.True(t, res.Decision.Execute())
	assert.Equal(t, 1, f.exec.calls)

	sig, err := f.mgr.GetSignal(context.Background(), res.Signal.SignalID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalExecuted, sig.Status)
	assert.Equal(t, 100.0, res.Trade.Amount)
}

func TestProcess_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cfg *domain.RiskConfig)
		det        detector.Detection
		wantStatus domain.SignalStatus
		wantCheck  decision.Check
	}{
		{
			name:       "short disabled ignores",
			mutate:     func(cfg *domain.RiskConfig) { cfg.AllowShort = false },
			det:        detection("m1", "BTC", false),
			wantStatus: domain.SignalIgnored,
			wantCheck:  decision.CheckDirection,
		},
		{
			name:       "ticker not allowed ignores",
			mutate:     func(cfg *domain.RiskConfig) { cfg.AllowedTickers = []string{"ETH"} },
			det:        detection("m2", "BTC", true),
			wantStatus: domain.SignalIgnored,
			wantCheck:  decision.CheckTicker,
		},
		{
			name:       "small cap ignores",
			mutate:     func(*domain.RiskConfig) {},
			det:        detection("m3", "PEPE", true),
			wantStatus: domain.SignalIgnored,
			wantCheck:  decision.CheckMarketCap,
		},
		{
			name:       "manual confirmation stays pending",
			mutate:     func(cfg *domain.RiskConfig) { cfg.AutoExecute = false },
			det:        detection("m4", "BTC", true),
			wantStatus: domain.SignalPending,
			wantCheck:  decision.CheckAutoExecute,
		},
		{
			name:       "no capacity stays pending",
			mutate:     func(cfg *domain.RiskConfig) { cfg.MaxSimultaneousTrades = 0 },
			det:        detection("m5", "BTC", true),
			wantStatus: domain.SignalPending,
			wantCheck:  decision.CheckCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f.cfg)

			res, err := f.pipe.Process(context.Background(), tt.det)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCheck, res.Decision.FailedCheck)
			assert.Nil(t, res.Trade)
			assert.Zero(t, f.exec.calls)

			sig, err := f.mgr.GetSignal(context.Background(), res.Signal.SignalID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, sig.Status)
			if tt.wantStatus == domain.SignalIgnored {
				require.NotNil(t, sig.DecisionReason)
				assert.Equal(t, res.Decision.Reason, *sig.DecisionReason)
			}
		})
	}
}

func TestProcess_ExecutionErrorLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.exec.err = errors.New("insufficient margin")

	res, err := f.pipe.Process(context.Background(), detection("m1", "BTC", true))
	require.NoError(t, err)
	assert.Nil(t, res.Trade)

	sig, err := f.mgr.GetSignal(context.Background(), res.Signal.SignalID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalPending, sig.Status)
}

func TestIngest_DuplicateMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipe.Ingest(ctx, detection("m1", "BTC", true)))
	err := f.pipe.Ingest(ctx, detection("m1", "BTC", true))
	assert.ErrorIs(t, err, domain.ErrDuplicateSignal)
	assert.Equal(t, 1, f.exec.calls)
}

func TestDescribe(t *testing.T) {
	d := decision.Decision{
		Outcome:     decision.OutcomeSkip,
		Reason:      "ticker BTC not in allowed list",
		FailedCheck: decision.CheckTicker,
		Criteria: []decision.CriterionResult{
			{Name: decision.CheckDirection, Threshold: "long=true short=true", Actual: "long", Pass: true},
			{Name: decision.CheckTicker, Threshold: "ETH", Actual: "BTC"},
		},
	}

	got := Describe(d)
	assert.Contains(t, got, "skip: ticker BTC not in allowed list")
	assert.Contains(t, got, "[ok] direction: long")
	assert.Contains(t, got, "[FAIL] ticker: BTC (want ETH)")
}
