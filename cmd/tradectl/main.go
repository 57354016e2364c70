// tradectl - operator CLI for the signal trader's stored signals and trades
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/decision"
	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/marketdata"
	"signal-trader/internal/metrics"
	"signal-trader/internal/pipeline"
	"signal-trader/internal/reporting"
	"signal-trader/internal/storage"
	chstore "signal-trader/internal/storage/clickhouse"
	"signal-trader/internal/storage/migrations"
	pgstore "signal-trader/internal/storage/postgres"
)

var (
	postgresDSN   string
	clickhouseDSN string
	configPath    string
	verbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradectl",
		Short: "Inspect and act on signals and trades",
		Long: `tradectl works directly against the signal trader's PostgreSQL state
(and ClickHouse for trade outcomes). It can list, execute and ignore pending
signals, close open trades and show per-ticker results.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (outcomes only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("SIGNAL_TRADER_CONFIG", "config.yaml"), "Risk and trader policy YAML file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log lifecycle details to stderr")

	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(tradesCmd())
	rootCmd.AddCommand(executeCmd())
	rootCmd.AddCommand(ignoreCmd())
	rootCmd.AddCommand(closeCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(outcomesCmd())
	rootCmd.AddCommand(reportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the connections one command needs.
type app struct {
	manager  *lifecycle.Manager
	policy   config.File
	outcomes storage.TradeOutcomeStore
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openApp connects to PostgreSQL and builds a lifecycle manager around
// executor. A nil executor is valid for commands that never place orders.
func openApp(ctx context.Context, executor lifecycle.Executor) (*app, error) {
	if postgresDSN == "" {
		return nil, errors.New("--postgres-dsn is required")
	}

	policy, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN, pgstore.WithMaxConns(2))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a := &app{policy: policy, closers: []func(){pool.Close}}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.closers = append(a.closers, func() { conn.Close() })
		a.outcomes = chstore.NewTradeOutcomeStore(conn)
	}

	a.manager = lifecycle.NewManager(lifecycle.Options{
		Signals:  pgstore.NewSignalStore(pool),
		Trades:   pgstore.NewTradeStore(pool),
		Ledger:   pgstore.NewLedger(pool),
		Outcomes: a.outcomes,
		Executor: executor,
		Logger:   newLogger(),
	})
	return a, nil
}

func newLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "[tradectl] ", log.LstdFlags)
}

func signalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Inspect signals",
	}

	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List signals by status (pending, executed, ignored)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.SignalStatus(status)
			if !st.IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}

			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			signals, err := a.manager.ListSignals(cmd.Context(), st)
			if err != nil {
				return err
			}
			printSignals(cmd.OutOrStdout(), signals)
			return nil
		},
	}
	listCmd.Flags().StringVarP(&status, "status", "s", string(domain.SignalPending), "Signal status")

	cmd.AddCommand(listCmd)
	return cmd
}

func tradesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Inspect trades",
	}

	var (
		closed bool
		since  time.Duration
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List open trades, or closed trades with --closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			var trades []*domain.Trade
			if closed {
				now := time.Now()
				trades, err = a.manager.ListClosedTrades(cmd.Context(), now.Add(-since).UnixMilli(), now.UnixMilli())
			} else {
				trades, err = a.manager.ListOpenTrades(cmd.Context())
			}
			if err != nil {
				return err
			}
			printTrades(cmd.OutOrStdout(), trades)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&closed, "closed", false, "List closed trades instead of open ones")
	listCmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "Closed trade lookback window")

	cmd.AddCommand(listCmd)
	return cmd
}

func executeCmd() *cobra.Command {
	var (
		brokerKind string
		mainnet    bool
	)
	cmd := &cobra.Command{
		Use:   "execute <signal-id>",
		Short: "Execute a pending signal with the configured sizing",
		Long: `Execute places the order for a pending signal, sized by the risk policy in
--config. The decision checks are not applied; use evaluate to see them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := newExecutor(brokerKind, mainnet)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), executor)
			if err != nil {
				return err
			}
			defer a.Close()

			sig, err := a.manager.GetSignal(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("signal %s: %w", args[0], err)
			}
			risk := a.policy.RiskConfig()
			plan := decision.PlanFor(sig.Parsed(), &risk)

			trade, err := a.manager.ExecuteSignal(cmd.Context(), sig.SignalID, plan)
			if err != nil {
				return fmt.Errorf("execute %s: %w", sig.SignalID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened trade %s: %s %s x%s at %s\n",
				trade.TradeID, trade.Direction, trade.Ticker, num(trade.Leverage), num(trade.EntryPrice))
			return nil
		},
	}
	cmd.Flags().StringVar(&brokerKind, "broker", envOr("BROKER", "paper"), "Order executor (paper, phemex)")
	cmd.Flags().BoolVar(&mainnet, "phemex-mainnet", false, "Trade on Phemex mainnet instead of testnet")
	return cmd
}

func ignoreCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "ignore <signal-id>",
		Short: "Mark a pending signal as ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.IgnoreSignal(cmd.Context(), args[0], reason); err != nil {
				return fmt.Errorf("ignore %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignored signal %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "ignored by operator", "Reason recorded on the signal")
	return cmd
}

func closeCmd() *cobra.Command {
	var (
		price  float64
		reason string
	)
	cmd := &cobra.Command{
		Use:   "close <trade-id>",
		Short: "Close an open trade at a price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if price <= 0 {
				return errors.New("--price must be positive")
			}
			r := domain.CloseReason(reason)
			if !r.IsValid() {
				return fmt.Errorf("unknown close reason %q", reason)
			}

			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			trade, err := a.manager.CloseTrade(cmd.Context(), args[0], r, price)
			if err != nil {
				return fmt.Errorf("close %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed trade %s (%s): P&L %s (%s%%)\n",
				trade.TradeID, r, num(deref(trade.PnLAmount)), num(deref(trade.PnLPercent)))
			return nil
		},
	}
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "Close price")
	cmd.Flags().StringVarP(&reason, "reason", "r", string(domain.CloseManual), "Close reason (manual, target_hit, stop_loss)")
	return cmd
}

func evaluateCmd() *cobra.Command {
	var coingeckoKey string
	cmd := &cobra.Command{
		Use:   "evaluate <signal-id>",
		Short: "Show how the current risk policy judges a stored signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			sig, err := a.manager.GetSignal(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("signal %s: %w", args[0], err)
			}
			open, err := a.manager.OpenTradeCount(cmd.Context())
			if err != nil {
				return err
			}

			var opts []marketdata.Option
			if coingeckoKey != "" {
				opts = append(opts, marketdata.WithAPIKey("x-cg-demo-api-key", coingeckoKey))
			}
			risk := a.policy.RiskConfig()
			d := decision.Decide(cmd.Context(), sig.Parsed(), &risk, decision.Env{
				OpenTrades: open,
				MarketCap:  marketdata.NewCoinGeckoClient(marketdata.DefaultCacheTTL, opts...),
			})
			fmt.Fprintln(cmd.OutOrStdout(), pipeline.Describe(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&coingeckoKey, "coingecko-key", os.Getenv("COINGECKO_API_KEY"), "CoinGecko demo API key")
	return cmd
}

func outcomesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outcomes [ticker]",
		Short: "Summarize closed trade results per ticker, or list one ticker's trades",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clickhouseDSN == "" {
				return errors.New("--clickhouse-dsn is required for outcomes")
			}
			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				rows, err := a.outcomes.GetByTicker(cmd.Context(), strings.ToUpper(args[0]))
				if err != nil {
					return err
				}
				printOutcomes(cmd.OutOrStdout(), rows)
				return nil
			}

			summaries, err := a.outcomes.Summary(cmd.Context())
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var (
		outDir string
		since  time.Duration
		topN   int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a Markdown and CSV report of closed trades",
		Long: `report computes win rate, PnL distribution and drawdown over closed trades,
grouped by ticker, direction and close reason. Outcomes come from ClickHouse
when --clickhouse-dsn is set, otherwise from closed trades in PostgreSQL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			var source metrics.OutcomeSource = metrics.NewTradeHistory(a.manager)
			if a.outcomes != nil {
				source = a.outcomes
			}

			now := time.Now()
			report, err := reporting.NewGenerator(source).
				WithTopN(topN).
				Generate(cmd.Context(), now.Add(-since).UnixMilli(), now.UnixMilli())
			if err != nil {
				return err
			}

			files, err := reporting.WriteFiles(outDir, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d closed trades\n", len(report.Trades))
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "reports", "Output directory")
	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "Lookback window")
	cmd.Flags().IntVar(&topN, "top", reporting.DefaultTopN, "Number of best and worst trades listed")
	return cmd
}

// newExecutor selects the order executor for execute.
func newExecutor(kind string, mainnet bool) (lifecycle.Executor, error) {
	switch strings.ToLower(kind) {
	case "paper":
		return broker.NewPaperExecutor(newLogger()), nil
	case "phemex":
		key, secret := os.Getenv("PHEMEX_API_KEY"), os.Getenv("PHEMEX_API_SECRET")
		if key == "" || secret == "" {
			return nil, errors.New("PHEMEX_API_KEY and PHEMEX_API_SECRET are required for --broker=phemex")
		}
		var opts []broker.ClientOption
		if mainnet {
			opts = append(opts, broker.WithBaseURL(broker.PhemexMainnetURL))
		}
		return broker.NewPhemexClient(key, secret, opts...), nil
	default:
		return nil, fmt.Errorf("unknown broker %q (want paper or phemex)", kind)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
