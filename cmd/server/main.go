// Package main runs the signal trader as one long-lived service:
// - Detection (continuous): channel feed, trader gate, reveal, parsing
// - Lifecycle: risk decisions, order execution, trade tracking
// - Price watcher and config hot reload
// - HTTP: health, metrics and the operator API
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/decision"
	"signal-trader/internal/detector"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/marketdata"
	"signal-trader/internal/notify"
	"signal-trader/internal/observability"
	"signal-trader/internal/pipeline"
	"signal-trader/internal/replay"
	"signal-trader/internal/storage"
	chstore "signal-trader/internal/storage/clickhouse"
	"signal-trader/internal/storage/memory"
	"signal-trader/internal/storage/migrations"
	pgstore "signal-trader/internal/storage/postgres"
	"signal-trader/internal/watcher"
)

// Server holds all components of the service.
type Server struct {
	configPath string

	stores    *allStores
	cfg       *config.Store
	manager   *lifecycle.Manager
	marketCap decision.MarketCapLookup
	detector  *detector.Detector
	watcher   *watcher.PriceWatcher
	logger    *log.Logger
}

// allStores holds all storage implementations.
type allStores struct {
	signals  storage.SignalStore
	trades   storage.TradeStore
	ledger   storage.Ledger
	seen     storage.SeenMessageStore
	outcomes storage.TradeOutcomeStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	configPath := flag.String("config", envOr("SIGNAL_TRADER_CONFIG", "config.yaml"), "Risk and trader policy YAML file")
	feedKind := flag.String("feed", envOr("FEED", "ws"), "Message feed (ws, desktop)")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Chat relay WebSocket endpoint")
	channelID := flag.String("channel-id", os.Getenv("CHANNEL_ID"), "Channel to watch")
	display := flag.Int("display", 0, "Display index for the desktop feed")
	region := flag.String("region", os.Getenv("FEED_REGION"), "Desktop capture region x,y,w,h (empty for the whole display)")
	ocrLang := flag.String("ocr-lang", envOr("OCR_LANG", "eng"), "Tesseract language for the desktop feed")
	brokerKind := flag.String("broker", envOr("BROKER", "paper"), "Order executor (paper, phemex)")
	phemexMainnet := flag.Bool("phemex-mainnet", false, "Trade on Phemex mainnet instead of testnet")
	coingeckoKey := flag.String("coingecko-key", os.Getenv("COINGECKO_API_KEY"), "CoinGecko demo API key")
	discordWebhook := flag.String("discord-webhook", os.Getenv("DISCORD_WEBHOOK_URL"), "Discord webhook for trade notifications")
	watchInterval := flag.Duration("watch-interval", watcher.DefaultInterval, "Open trade price check interval")
	recordPath := flag.String("record", os.Getenv("RECORD_PATH"), "Append observed messages to this JSON-lines file for replay")
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":9090"), "HTTP address for health, metrics and the operator API")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *channelID == "" {
		logger.Fatal("--channel-id is required")
	}
	if *feedKind == "ws" && *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required for --feed=ws")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Load policy
	file, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfgStore := config.NewStore(file)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("", nil)

	executor, err := createExecutor(*brokerKind, *phemexMainnet, metrics, logger)
	if err != nil {
		logger.Fatalf("Failed to create executor: %v", err)
	}

	var notifier lifecycle.Notifier
	if *discordWebhook != "" {
		notifier = notify.NewDiscordNotifier(*discordWebhook)
	}

	manager := lifecycle.NewManager(lifecycle.Options{
		Signals:  stores.signals,
		Trades:   stores.trades,
		Ledger:   stores.ledger,
		Outcomes: stores.outcomes,
		Executor: executor,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	})

	mdOpts := []marketdata.Option{marketdata.WithMetrics(metrics)}
	if *coingeckoKey != "" {
		mdOpts = append(mdOpts, marketdata.WithAPIKey("x-cg-demo-api-key", *coingeckoKey))
	}
	marketCap := marketdata.NewCoinGeckoClient(marketdata.DefaultCacheTTL, mdOpts...)
	pipe := pipeline.New(pipeline.Options{
		Lifecycle: manager,
		Risk:      cfgStore.Risk,
		MarketCap: marketCap,
		Metrics:   metrics,
		Logger:    logger,
	})

	parts, err := openFeed(ctx, feedSettings{
		kind:      *feedKind,
		endpoint:  *wsEndpoint,
		channelID: *channelID,
		display:   *display,
		region:    *region,
		ocrLang:   *ocrLang,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to open %s feed: %v", *feedKind, err)
	}
	defer parts.close()

	var feed detector.Feed = parts.feed
	if *recordPath != "" {
		rec, err := os.OpenFile(*recordPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Fatalf("Failed to open recording file: %v", err)
		}
		defer rec.Close()
		feed = replay.NewRecordingFeed(feed, replay.NewRecorder(rec), logger)
		logger.Printf("Recording observed messages to %s", *recordPath)
	}

	detCfg := detector.DefaultConfig()
	detCfg.ChannelID = *channelID
	det := detector.New(detector.Options{
		Config:  detCfg,
		Feed:    feed,
		Frames:  parts.frames,
		Clicker: parts.clicker,
		Locator: parts.locator,
		Seen:    stores.seen,
		Sink:    pipe,
		Traders: cfgStore.Traders,
		Metrics: metrics,
		Logger:  logger,
	})

	priceWatcher := watcher.New(watcher.Options{
		Lifecycle: manager,
		Prices:    marketdata.NewBinanceClient(marketdata.WithMetrics(metrics)),
		Risk:      cfgStore.Risk,
		Interval:  *watchInterval,
		Metrics:   metrics,
		Logger:    logger,
	})

	// Create server
	server := &Server{
		configPath: *configPath,
		stores:     stores,
		cfg:        cfgStore,
		manager:    manager,
		marketCap:  marketCap,
		detector:   det,
		watcher:    priceWatcher,
		logger:     logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(ctx, *httpAddr)

	// Run the service
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		signals := memory.NewSignalStore()
		trades := memory.NewTradeStore()
		stores := &allStores{
			signals:  signals,
			trades:   trades,
			ledger:   memory.NewLedger(signals, trades),
			seen:     memory.NewSeenMessageStore(),
			outcomes: memory.NewTradeOutcomeStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (operational state)
		signals: pgstore.NewSignalStore(pool),
		trades:  pgstore.NewTradeStore(pool),
		ledger:  pgstore.NewLedger(pool),
		seen:    pgstore.NewSeenMessageStore(pool),

		// ClickHouse stores (analytics)
		outcomes: chstore.NewTradeOutcomeStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// createExecutor selects the order executor.
func createExecutor(kind string, mainnet bool, metrics *observability.Metrics, logger *log.Logger) (lifecycle.Executor, error) {
	switch strings.ToLower(kind) {
	case "paper":
		logger.Println("Paper trading: orders fill at the signal entry price")
		return broker.NewPaperExecutor(logger), nil
	case "phemex":
		key, secret := os.Getenv("PHEMEX_API_KEY"), os.Getenv("PHEMEX_API_SECRET")
		if key == "" || secret == "" {
			return nil, fmt.Errorf("PHEMEX_API_KEY and PHEMEX_API_SECRET are required for --broker=phemex")
		}
		opts := []broker.ClientOption{broker.WithMetrics(metrics)}
		if mainnet {
			opts = append(opts, broker.WithBaseURL(broker.PhemexMainnetURL))
			logger.Println("Phemex MAINNET: orders use real funds")
		}
		return broker.NewPhemexClient(key, secret, opts...), nil
	default:
		return nil, fmt.Errorf("unknown broker %q (want paper or phemex)", kind)
	}
}

// Run starts detection, price watching and config reload, and blocks until
// ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting signal trader...")

	if err := s.detector.Warm(ctx); err != nil {
		return fmt.Errorf("warm seen-set: %w", err)
	}

	// Create error channel for goroutines
	errCh := make(chan error, 3)

	// Start detection loop
	go func() {
		err := s.detector.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("detector: %w", err)
		}
	}()

	// Start price watcher
	go func() {
		err := s.watcher.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("price watcher: %w", err)
		}
	}()

	// Start config watcher
	go func() {
		err := config.Watch(ctx, s.configPath, s.cfg, s.logger)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("config watcher: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// startHTTPServer serves health, metrics and the operator API until ctx ends.
func (s *Server) startHTTPServer(ctx context.Context, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
