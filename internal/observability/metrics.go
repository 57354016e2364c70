// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid; every recorder is a no-op on it.
type Metrics struct {
	// Detection metrics
	MessagesScanned prometheus.Counter
	GateOutcomes    *prometheus.CounterVec
	Reveals         *prometheus.CounterVec
	LocatorHits     *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	FeedErrors      *prometheus.CounterVec
	SeenSetSize     prometheus.Gauge
	PendingLocked   prometheus.Gauge

	// Lifecycle metrics
	SignalsCreated  prometheus.Counter
	Decisions       *prometheus.CounterVec
	TradesOpened    prometheus.Counter
	TradesClosed    *prometheus.CounterVec
	TradePnLPercent prometheus.Histogram
	ExecutionErrors prometheus.Counter
	OpenTrades      prometheus.Gauge

	// Collaborator metrics
	ExternalCallLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "signal_trader"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		MessagesScanned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "messages_scanned_total",
			Help:      "Total number of visible messages evaluated",
		}),
		GateOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "gate_outcomes_total",
			Help:      "Terminal and gated outcomes by kind",
		}, []string{"outcome"}),
		Reveals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "reveals_total",
			Help:      "Reveal actions by result",
		}, []string{"result"}),
		LocatorHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locator",
			Name:      "hits_total",
			Help:      "Locator hits by strategy",
		}, []string{"strategy"}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one scan cycle in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "feed_errors_total",
			Help:      "Transient feed failures by operation",
		}, []string{"operation"}),
		SeenSetSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "seen_set_size",
			Help:      "Number of message ids in the seen-set",
		}),
		PendingLocked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "pending_locked_messages",
			Help:      "Locked messages awaiting a locator hit",
		}),

		SignalsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "signals_created_total",
			Help:      "Total number of signals created",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "decisions_total",
			Help:      "Decisions by outcome and failed check",
		}, []string{"outcome", "check"}),
		TradesOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "trades_opened_total",
			Help:      "Total number of trades opened",
		}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "trades_closed_total",
			Help:      "Trades closed by reason",
		}, []string{"reason"}),
		TradePnLPercent: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "trade_pnl_percent",
			Help:      "Realized P&L percent of closed trades",
			Buckets:   []float64{-100, -50, -25, -10, -5, 0, 5, 10, 25, 50, 100, 250},
		}),
		ExecutionErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "execution_errors_total",
			Help:      "Broker rejections of execute requests",
		}),
		OpenTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "open_trades",
			Help:      "Number of currently open trades",
		}),

		ExternalCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_latency_seconds",
			Help:      "External collaborator call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),

		LastSuccessfulScan: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last completed scan cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving metrics from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordMessageScanned increments the scanned message counter.
func (m *Metrics) RecordMessageScanned() {
	if m == nil {
		return
	}
	m.MessagesScanned.Inc()
}

// RecordGateOutcome records a detector outcome (ingested, discarded, duplicate, gated_fail).
func (m *Metrics) RecordGateOutcome(outcome string) {
	if m == nil {
		return
	}
	m.GateOutcomes.WithLabelValues(outcome).Inc()
}

// RecordReveal records a reveal attempt result.
func (m *Metrics) RecordReveal(result string) {
	if m == nil {
		return
	}
	m.Reveals.WithLabelValues(result).Inc()
}

// RecordLocatorHit records which locator strategy produced a result.
func (m *Metrics) RecordLocatorHit(strategy string) {
	if m == nil {
		return
	}
	m.LocatorHits.WithLabelValues(strategy).Inc()
}

// RecordFeedError records a transient feed failure.
func (m *Metrics) RecordFeedError(operation string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(operation).Inc()
}

// RecordScan records a completed scan cycle.
func (m *Metrics) RecordScan(seconds float64, seen, pendingLocked int, unixNow int64) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(seconds)
	m.SeenSetSize.Set(float64(seen))
	m.PendingLocked.Set(float64(pendingLocked))
	m.LastSuccessfulScan.Set(float64(unixNow))
}

// RecordSignalCreated increments the created signal counter.
func (m *Metrics) RecordSignalCreated() {
	if m == nil {
		return
	}
	m.SignalsCreated.Inc()
}

// RecordDecision records a decision. check is empty for execute decisions.
func (m *Metrics) RecordDecision(outcome, check string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome, check).Inc()
}

// RecordTradeOpened increments the opened trade counter.
func (m *Metrics) RecordTradeOpened() {
	if m == nil {
		return
	}
	m.TradesOpened.Inc()
	m.OpenTrades.Inc()
}

// RecordTradeClosed records a trade close and its P&L.
func (m *Metrics) RecordTradeClosed(reason string, pnlPercent float64) {
	if m == nil {
		return
	}
	m.TradesClosed.WithLabelValues(reason).Inc()
	m.TradePnLPercent.Observe(pnlPercent)
	m.OpenTrades.Dec()
}

// SetOpenTrades sets the open trade gauge, used on startup.
func (m *Metrics) SetOpenTrades(n int) {
	if m == nil {
		return
	}
	m.OpenTrades.Set(float64(n))
}

// RecordExecutionError increments the broker rejection counter.
func (m *Metrics) RecordExecutionError() {
	if m == nil {
		return
	}
	m.ExecutionErrors.Inc()
}

// RecordExternalCall records latency of a collaborator call.
func (m *Metrics) RecordExternalCall(service, method string, seconds float64) {
	if m == nil {
		return
	}
	m.ExternalCallLatency.WithLabelValues(service, method).Observe(seconds)
}
