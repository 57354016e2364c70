// Package pipeline connects detections to the decision engine and the
// trade lifecycle.
// Flow: detection → signal → decision → execute | ignore | pending
package pipeline

import (
	"context"
	"fmt"
	"log"

	"signal-trader/internal/decision"
	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
	"signal-trader/internal/observability"
)

// Lifecycle is the subset of *lifecycle.Manager the pipeline drives.
type Lifecycle interface {
	CreateSignal(ctx context.Context, msg domain.RawMessage, parsed domain.ParsedSignal) (*domain.Signal, error)
	ExecuteSignal(ctx context.Context, signalID string, plan decision.Plan) (*domain.Trade, error)
	IgnoreSignal(ctx context.Context, signalID, reason string) error
	OpenTradeCount(ctx context.Context) (int, error)
}

// Pipeline implements detector.Sink.
type Pipeline struct {
	lifecycle Lifecycle
	risk      func() *domain.RiskConfig
	marketCap decision.MarketCapLookup
	metrics   *observability.Metrics
	logger    *log.Logger
}

// Options contains configuration for creating a Pipeline.
type Options struct {
	Lifecycle Lifecycle
	// Risk returns the active policy snapshot. Default: domain.DefaultRiskConfig.
	Risk      func() *domain.RiskConfig
	MarketCap decision.MarketCapLookup // optional
	Metrics   *observability.Metrics   // optional
	Logger    *log.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	risk := opts.Risk
	if risk == nil {
		def := domain.DefaultRiskConfig()
		risk = func() *domain.RiskConfig { return &def }
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		lifecycle: opts.Lifecycle,
		risk:      risk,
		marketCap: opts.MarketCap,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Result describes what happened to one detection.
type Result struct {
	Signal   *domain.Signal
	Decision decision.Decision
	Trade    *domain.Trade // set when the signal was executed
}

// Compile-time interface check.
var _ detector.Sink = (*Pipeline)(nil)

// Ingest implements detector.Sink. Only signal creation failures are
// returned; once the signal is stored the detection is complete.
func (p *Pipeline) Ingest(ctx context.Context, det detector.Detection) error {
	_, err := p.Process(ctx, det)
	return err
}

// Process creates a signal for det and acts on its decision.
// Filter failures ignore the signal. Manual confirmation, capacity and
// broker failures leave it pending.
func (p *Pipeline) Process(ctx context.Context, det detector.Detection) (*Result, error) {
	sig, err := p.lifecycle.CreateSignal(ctx, det.Message, det.Parsed)
	if err != nil {
		return nil, err
	}

	// One snapshot for the whole evaluation.
	cfg := p.risk()

	open, err := p.lifecycle.OpenTradeCount(ctx)
	if err != nil {
		p.logger.Printf("Signal %s left pending: count open trades: %v", sig.SignalID, err)
		return &Result{Signal: sig}, nil
	}

	d := decision.Decide(ctx, det.Parsed, cfg, decision.Env{OpenTrades: open, MarketCap: p.marketCap})
	p.metrics.RecordDecision(string(d.Outcome), string(d.FailedCheck))
	result := &Result{Signal: sig, Decision: d}

	switch {
	case d.Execute():
		trade, err := p.lifecycle.ExecuteSignal(ctx, sig.SignalID, decision.PlanFor(det.Parsed, cfg))
		if err != nil {
			p.logger.Printf("Signal %s (%s %s) left pending: %v", sig.SignalID, sig.Direction, sig.Ticker, err)
			return result, nil
		}
		result.Trade = trade

	case d.FailedCheck.IsFilter():
		if err := p.lifecycle.IgnoreSignal(ctx, sig.SignalID, d.Reason); err != nil {
			p.logger.Printf("Error ignoring signal %s: %v", sig.SignalID, err)
			return result, nil
		}
		p.logger.Printf("Signal %s (%s %s) ignored: %s", sig.SignalID, sig.Direction, sig.Ticker, d.Reason)

	default:
		p.logger.Printf("Signal %s (%s %s) pending: %s", sig.SignalID, sig.Direction, sig.Ticker, d.Reason)
	}

	return result, nil
}

// Describe renders a decision's criteria for logs and operator output.
func Describe(d decision.Decision) string {
	s := fmt.Sprintf("%s: %s", d.Outcome, d.Reason)
	for _, c := range d.Criteria {
		mark := "ok"
		if !c.Pass {
			mark = "FAIL"
		}
		s += fmt.Sprintf("\n  [%s] %s: %s (want %s)", mark, c.Name, c.Actual, c.Threshold)
	}
	return s
}
