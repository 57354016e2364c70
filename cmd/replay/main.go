// Command replay feeds a recorded message log through detection, the
// decision policy and paper execution, then prints what the live pipeline
// would have done. Nothing is persisted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/marketdata"
	"signal-trader/internal/pipeline"
	"signal-trader/internal/replay"
	"signal-trader/internal/storage/memory"
)

func main() {
	// Parse flags
	input := flag.String("input", "", "Recorded message log, JSON lines (required)")
	configPath := flag.String("config", "config.yaml", "Policy configuration file")
	channelID := flag.String("channel-id", "", "Channel id to attribute signals to (default: per message)")
	fromTime := flag.String("from-time", "", "Start time (RFC3339)")
	toTime := flag.String("to-time", "", "End time (RFC3339)")
	noMarketCap := flag.Bool("no-market-cap", false, "Disable the market-cap filter instead of querying CoinGecko")
	coingeckoKey := flag.String("coingecko-key", os.Getenv("COINGECKO_API_KEY"), "CoinGecko demo API key")
	verbose := flag.Bool("verbose", false, "Log pipeline activity")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Validate required flags
	if *input == "" {
		logger.Fatal("--input is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	msgs, err := readRecording(*input)
	if err != nil {
		logger.Fatalf("read recording: %v", err)
	}

	file, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *noMarketCap {
		file.Risk.EnableMarketCapFilter = false
	}
	cfgStore := config.NewStore(file)

	// Determine time range
	var from, to int64
	if *fromTime != "" {
		t, err := time.Parse(time.RFC3339, *fromTime)
		if err != nil {
			logger.Fatalf("parse from-time: %v", err)
		}
		from = t.UnixMilli()
	}
	if *toTime != "" {
		t, err := time.Parse(time.RFC3339, *toTime)
		if err != nil {
			logger.Fatalf("parse to-time: %v", err)
		}
		to = t.UnixMilli()
	}
	if (from > 0) != (to > 0) {
		logger.Fatal("Both --from-time and --to-time must be specified together for deterministic replay")
	}

	pipeLogger := log.New(io.Discard, "", 0)
	if *verbose {
		pipeLogger = logger
	}

	signals := memory.NewSignalStore()
	trades := memory.NewTradeStore()
	manager := lifecycle.NewManager(lifecycle.Options{
		Signals:  signals,
		Trades:   trades,
		Ledger:   memory.NewLedger(signals, trades),
		Outcomes: memory.NewTradeOutcomeStore(),
		Executor: broker.NewPaperExecutor(pipeLogger),
		Logger:   pipeLogger,
	})

	var pipeOpts pipeline.Options
	pipeOpts.Lifecycle = manager
	pipeOpts.Risk = cfgStore.Risk
	pipeOpts.Logger = pipeLogger
	if !*noMarketCap {
		var mdOpts []marketdata.Option
		if *coingeckoKey != "" {
			mdOpts = append(mdOpts, marketdata.WithAPIKey("x-cg-demo-api-key", *coingeckoKey))
		}
		pipeOpts.MarketCap = marketdata.NewCoinGeckoClient(marketdata.DefaultCacheTTL, mdOpts...)
	}
	pipe := pipeline.New(pipeOpts)

	detCfg := detector.DefaultConfig()
	detCfg.ChannelID = *channelID
	det := detector.New(detector.Options{
		Config:  detCfg,
		Sink:    pipe,
		Traders: cfgStore.Traders,
		Logger:  pipeLogger,
	})

	engine := NewDetectingEngine(det, *channelID, !*outputJSON)
	runner := replay.NewRunner(msgs)

	// Run replay
	if from > 0 {
		logger.Printf("Replaying %d recorded messages from %d to %d", runner.Len(), from, to)
		_, err = runner.Run(ctx, from, to, engine)
	} else {
		logger.Printf("Replaying all %d recorded messages", runner.Len())
		_, err = runner.RunAll(ctx, engine)
	}
	if err != nil {
		logger.Fatalf("replay failed: %v", err)
	}

	summary, err := summarize(ctx, engine.Stats(), signals, trades)
	if err != nil {
		logger.Fatalf("summarize: %v", err)
	}

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(output))
		return
	}
	printSummary(os.Stdout, summary)
}

func readRecording(path string) ([]domain.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return replay.ReadMessages(f)
}

// DetectingEngine evaluates each replayed message with the detector.
type DetectingEngine struct {
	det       *detector.Detector
	channelID string
	echo      bool
	stats     ReplayStats
}

// ReplayStats holds per-outcome message counts.
type ReplayStats struct {
	TotalMessages int                      `json:"total_messages"`
	Outcomes      map[detector.Outcome]int `json:"outcomes"`
	FirstObserved int64                    `json:"first_observed_at"`
	LastObserved  int64                    `json:"last_observed_at"`
}

// Compile-time interface check.
var _ replay.Engine = (*DetectingEngine)(nil)

// NewDetectingEngine creates an engine driving det. A non-empty channelID
// overrides the recorded channel of every message.
func NewDetectingEngine(det *detector.Detector, channelID string, echo bool) *DetectingEngine {
	return &DetectingEngine{
		det:       det,
		channelID: channelID,
		echo:      echo,
		stats:     ReplayStats{Outcomes: make(map[detector.Outcome]int)},
	}
}

// OnMessage evaluates one message.
func (e *DetectingEngine) OnMessage(ctx context.Context, msg domain.RawMessage) error {
	if e.channelID != "" {
		msg.ChannelID = e.channelID
	}

	outcome := e.det.Evaluate(ctx, msg)
	e.stats.TotalMessages++
	e.stats.Outcomes[outcome]++
	if e.stats.FirstObserved == 0 || msg.ObservedAt < e.stats.FirstObserved {
		e.stats.FirstObserved = msg.ObservedAt
	}
	if msg.ObservedAt > e.stats.LastObserved {
		e.stats.LastObserved = msg.ObservedAt
	}

	if e.echo {
		fmt.Printf("[%s] %s %s -> %s\n",
			time.UnixMilli(msg.ObservedAt).UTC().Format(time.RFC3339),
			msg.ID,
			msg.Author,
			outcome,
		)
	}
	return nil
}

// Stats returns replay statistics.
func (e *DetectingEngine) Stats() ReplayStats {
	return e.stats
}
