package reporting

import (
	"fmt"
	"strings"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/metrics"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trading Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n", formatMillis(r.From), formatMillis(r.To)))

	if r.Overall.TotalTrades == 0 {
		sb.WriteString("No closed trades in this period.\n")
		return sb.String()
	}

	// Summary
	o := r.Overall
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", o.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", o.Wins, o.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.1f%% |\n", o.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Tickers | %d (%.1f%% with a win) |\n", o.TotalTickers, o.TickerWinRate*100))
	sb.WriteString(fmt.Sprintf("| Total P&L | %.2f |\n", o.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Mean / Median P&L | %.2f%% / %.2f%% |\n", o.PnLMean, o.PnLMedian))
	sb.WriteString(fmt.Sprintf("| P10 / P90 P&L | %.2f%% / %.2f%% |\n", o.PnLP10, o.PnLP90))
	sb.WriteString(fmt.Sprintf("| Best / Worst | %.2f%% / %.2f%% |\n", o.PnLMax, o.PnLMin))
	sb.WriteString(fmt.Sprintf("| Stddev | %.2f%% |\n", o.PnLStddev))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f |\n", o.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", o.MaxConsecutiveLosses))
	sb.WriteString(fmt.Sprintf("| Avg Hold | %s |\n", holdDuration(o.AvgHoldMs)))
	sb.WriteString("\n")

	writeGroupTable(&sb, "By Ticker", "Ticker", r.ByTicker)
	writeGroupTable(&sb, "By Direction", "Direction", r.ByDirection)
	writeGroupTable(&sb, "By Close Reason", "Reason", r.ByCloseReason)

	writeTradeTable(&sb, "Best Trades", r.Best)
	writeTradeTable(&sb, "Worst Trades", r.Worst)

	return sb.String()
}

func writeGroupTable(sb *strings.Builder, title, keyName string, groups []*metrics.Stats) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	if len(groups) == 0 {
		sb.WriteString("No data.\n\n")
		return
	}
	sb.WriteString(fmt.Sprintf("| %s | Trades | WinRate | Total P&L | Mean | Median | MaxDD | MaxLoss |\n", keyName))
	sb.WriteString("|---|--------|---------|-----------|------|--------|-------|---------|\n")
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.2f | %.2f%% | %.2f%% | %.2f | %d |\n",
			g.Key, g.TotalTrades, g.WinRate*100, g.TotalPnL, g.PnLMean, g.PnLMedian,
			g.MaxDrawdown, g.MaxConsecutiveLosses))
	}
	sb.WriteString("\n")
}

func writeTradeTable(sb *strings.Builder, title string, trades []*domain.TradeOutcome) {
	if len(trades) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	sb.WriteString("| Trade | Ticker | Side | Reason | Entry | Close | P&L | P&L% | Held |\n")
	sb.WriteString("|-------|--------|------|--------|-------|-------|-----|------|------|\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %.2f | %.2f%% | %s |\n",
			shortID(t.TradeID), t.Ticker, t.Direction, t.CloseReason,
			formatFloat(t.EntryPrice), formatFloat(t.ClosePrice), t.PnLAmount, t.PnLPercent,
			holdDuration(t.HoldDurationMs)))
	}
	sb.WriteString("\n")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func holdDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
