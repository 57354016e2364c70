package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// Summary is the replay result.
type Summary struct {
	Stats   ReplayStats    `json:"stats"`
	Signals []SignalResult `json:"signals"`
}

// SignalResult is one signal created during replay.
type SignalResult struct {
	SignalID  string   `json:"signal_id"`
	Author    string   `json:"author"`
	Ticker    string   `json:"ticker"`
	Direction string   `json:"direction"`
	Entry     float64  `json:"entry"`
	Stop      float64  `json:"stop"`
	Target    float64  `json:"target"`
	Status    string   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
	TradeID   string   `json:"trade_id,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Leverage  *float64 `json:"leverage,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

var signalStatuses = []domain.SignalStatus{
	domain.SignalPending,
	domain.SignalExecuted,
	domain.SignalIgnored,
}

func summarize(ctx context.Context, stats ReplayStats, signals storage.SignalStore, trades storage.TradeStore) (*Summary, error) {
	s := &Summary{Stats: stats, Signals: []SignalResult{}}

	for _, status := range signalStatuses {
		list, err := signals.GetByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("list %s signals: %w", status, err)
		}
		for _, sig := range list {
			r := SignalResult{
				SignalID:  sig.SignalID,
				Author:    sig.Author,
				Ticker:    sig.Ticker,
				Direction: string(sig.Direction),
				Entry:     sig.EntryPrice,
				Stop:      sig.StopLossPrice,
				Target:    sig.TargetPrice(),
				Status:    string(sig.Status),
				CreatedAt: sig.CreatedAt,
			}
			if sig.DecisionReason != nil {
				r.Reason = *sig.DecisionReason
			}
			if sig.Status == domain.SignalExecuted {
				trade, err := trades.GetBySignalID(ctx, sig.SignalID)
				if err != nil {
					return nil, fmt.Errorf("trade for signal %s: %w", sig.SignalID, err)
				}
				r.TradeID = trade.TradeID
				r.Amount = &trade.Amount
				r.Leverage = &trade.Leverage
			}
			s.Signals = append(s.Signals, r)
		}
	}

	sort.Slice(s.Signals, func(i, j int) bool {
		if s.Signals[i].CreatedAt != s.Signals[j].CreatedAt {
			return s.Signals[i].CreatedAt < s.Signals[j].CreatedAt
		}
		return s.Signals[i].SignalID < s.Signals[j].SignalID
	})
	return s, nil
}

func printSummary(w io.Writer, s *Summary) {
	st := s.Stats
	fmt.Fprintf(w, "\n=== Replay Summary ===\n")
	fmt.Fprintf(w, "Total Messages:    %d\n", st.TotalMessages)
	for _, o := range []detector.Outcome{
		detector.OutcomeIngested,
		detector.OutcomeDiscarded,
		detector.OutcomeDuplicate,
		detector.OutcomeGatedFail,
		detector.OutcomeRetry,
	} {
		fmt.Fprintf(w, "  %-16s %d\n", o+":", st.Outcomes[o])
	}
	if st.TotalMessages > 0 {
		fmt.Fprintf(w, "First Message:     %s\n", time.UnixMilli(st.FirstObserved).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Last Message:      %s\n", time.UnixMilli(st.LastObserved).UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "First Message:     N/A\n")
		fmt.Fprintf(w, "Last Message:      N/A\n")
	}

	fmt.Fprintf(w, "\n=== Signals (%d) ===\n", len(s.Signals))
	for _, r := range s.Signals {
		fmt.Fprintf(w, "%s %-6s %-5s entry=%g sl=%g tp=%g -> %s",
			r.Author, r.Ticker, r.Direction, r.Entry, r.Stop, r.Target, r.Status)
		if r.Amount != nil {
			fmt.Fprintf(w, " amount=%g x%g", *r.Amount, *r.Leverage)
		}
		if r.Reason != "" {
			fmt.Fprintf(w, " (%s)", r.Reason)
		}
		fmt.Fprintln(w)
	}
}
