package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/pipeline"
	"signal-trader/internal/replay"
	"signal-trader/internal/storage/memory"
)

const recording = `{"id":"m2","author":"@randomguy","text":"Longed ETH at 3000 sl- 2900 (1% risk) TPs: 3300","channel_id":"trades","observed_at":2000}
{"id":"m1","author":"@yramki","text":"Longed BTC at 67500 sl- 65200 (1% risk) TPs: 70000","channel_id":"trades","observed_at":1000}
{"id":"m1","author":"@yramki","text":"Longed BTC at 67500 sl- 65200 (1% risk) TPs: 70000","channel_id":"trades","observed_at":1500}
{"id":"m3","author":"@Tareeq","text":"gm everyone","channel_id":"trades","observed_at":3000}
`

func TestReplay_EndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)

	file := config.Default()
	file.Risk.EnableMarketCapFilter = false
	file.Risk.AutoExecute = true
	cfg := config.NewStore(file)

	signals := memory.NewSignalStore()
	trades := memory.NewTradeStore()
	manager := lifecycle.NewManager(lifecycle.Options{
		Signals:  signals,
		Trades:   trades,
		Ledger:   memory.NewLedger(signals, trades),
		Outcomes: memory.NewTradeOutcomeStore(),
		Executor: broker.NewPaperExecutor(logger),
		Logger:   logger,
	})
	pipe := pipeline.New(pipeline.Options{Lifecycle: manager, Risk: cfg.Risk, Logger: logger})
	det := detector.New(detector.Options{
		Config:  detector.DefaultConfig(),
		Sink:    pipe,
		Traders: cfg.Traders,
		Logger:  logger,
	})

	msgs, err := replay.ReadMessages(bytes.NewBufferString(recording))
	require.NoError(t, err)

	engine := NewDetectingEngine(det, "", false)
	n, err := replay.NewRunner(msgs).RunAll(ctx, engine)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	stats := engine.Stats()
	assert.Equal(t, 1, stats.Outcomes[detector.OutcomeIngested])
	assert.Equal(t, 1, stats.Outcomes[detector.OutcomeDuplicate])
	assert.Equal(t, 2, stats.Outcomes[detector.OutcomeDiscarded])
	assert.Equal(t, int64(1000), stats.FirstObserved)
	assert.Equal(t, int64(3000), stats.LastObserved)

	summary, err := summarize(ctx, stats, signals, trades)
	require.NoError(t, err)
	require.Len(t, summary.Signals, 1)

	got := summary.Signals[0]
	assert.Equal(t, "BTC", got.Ticker)
	assert.Equal(t, string(domain.SignalExecuted), got.Status)
	assert.NotEmpty(t, got.TradeID)
	require.NotNil(t, got.Amount)

	var out bytes.Buffer
	printSummary(&out, summary)
	assert.Contains(t, out.String(), "Total Messages:    4")
	assert.Contains(t, out.String(), "BTC")
	assert.Contains(t, out.String(), "executed")
}

func TestDetectingEngine_ChannelOverride(t *testing.T) {
	var got string
	sink := sinkFunc(func(_ context.Context, d detector.Detection) error {
		got = d.Message.ChannelID
		return nil
	})
	det := detector.New(detector.Options{
		Config: detector.DefaultConfig(),
		Sink:   sink,
		Traders: func() domain.TraderAllowList {
			return config.Default().TraderAllowList()
		},
		Logger: log.New(io.Discard, "", 0),
	})

	engine := NewDetectingEngine(det, "live", false)
	err := engine.OnMessage(context.Background(), domain.RawMessage{
		ID: "m1", Author: "@yramki", ChannelID: "recorded", ObservedAt: 1,
		Text: "Longed BTC at 67500 sl- 65200 (1% risk) TPs: 70000",
	})
	require.NoError(t, err)
	assert.Equal(t, "live", got)
}

type sinkFunc func(ctx context.Context, d detector.Detection) error

func (f sinkFunc) Ingest(ctx context.Context, d detector.Detection) error {
	return f(ctx, d)
}
