package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"signal-trader/internal/domain"
)

// num formats a float without binary rounding noise.
func num(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func millis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func printSignals(w io.Writer, signals []*domain.Signal) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNAL\tCREATED\tAUTHOR\tTICKER\tSIDE\tENTRY\tSTOP\tTARGETS\tSTATUS\tREASON")
	for _, s := range signals {
		targets := make([]string, len(s.TargetPrices))
		for i, t := range s.TargetPrices {
			targets[i] = num(t)
		}
		reason := "-"
		if s.DecisionReason != nil {
			reason = *s.DecisionReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.SignalID, millis(s.CreatedAt), s.Author, s.Ticker, s.Direction,
			num(s.EntryPrice), num(s.StopLossPrice), strings.Join(targets, ","), s.Status, reason)
	}
	tw.Flush()
}

func printTrades(w io.Writer, trades []*domain.Trade) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRADE\tOPENED\tTICKER\tSIDE\tLEV\tAMOUNT\tENTRY\tSTOP\tTARGET\tSTATUS\tCLOSE\tPNL\tPNL%")
	for _, t := range trades {
		closePrice, pnl, pct := "-", "-", "-"
		if t.ClosePrice != nil {
			closePrice = num(*t.ClosePrice)
		}
		if t.PnLAmount != nil {
			pnl = num(*t.PnLAmount)
		}
		if t.PnLPercent != nil {
			pct = decimal.NewFromFloat(*t.PnLPercent).StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.TradeID, millis(t.OpenedAt), t.Ticker, t.Direction, num(t.Leverage), num(t.Amount),
			num(t.EntryPrice), num(t.StopPrice), num(t.TargetPrice), t.Status, closePrice, pnl, pct)
	}
	tw.Flush()
}

func printSummaries(w io.Writer, summaries []*domain.OutcomeSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tTRADES\tWINS\tLOSSES\tWIN%\tTOTAL PNL\tAVG PNL%")
	for _, s := range summaries {
		winRate := decimal.Zero
		if s.TotalTrades > 0 {
			winRate = decimal.NewFromInt(int64(s.Wins)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(s.TotalTrades)))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			s.Ticker, s.TotalTrades, s.Wins, s.Losses, winRate.StringFixed(1),
			decimal.NewFromFloat(s.TotalPnL).StringFixed(2), decimal.NewFromFloat(s.AvgPnLPercent).StringFixed(2))
	}
	tw.Flush()
}

func printOutcomes(w io.Writer, rows []*domain.TradeOutcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRADE\tCLOSED\tSIDE\tREASON\tENTRY\tCLOSE\tPNL\tPNL%\tHELD")
	for _, o := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.TradeID, millis(o.ClosedAt), o.Direction, o.CloseReason, num(o.EntryPrice), num(o.ClosePrice),
			decimal.NewFromFloat(o.PnLAmount).StringFixed(2), decimal.NewFromFloat(o.PnLPercent).StringFixed(2),
			(time.Duration(o.HoldDurationMs) * time.Millisecond).Round(time.Second))
	}
	tw.Flush()
}
