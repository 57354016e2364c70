package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"signal-trader/internal/domain"
)

var csvHeader = []string{
	"trade_id", "signal_id", "ticker", "direction", "close_reason",
	"leverage", "amount", "entry_price", "close_price", "pnl_amount", "pnl_percent",
	"opened_at", "closed_at", "hold_duration_ms",
}

// RenderCSV renders trade outcomes as CSV with a header row.
func RenderCSV(outcomes []*domain.TradeOutcome) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, o := range outcomes {
		record := []string{
			o.TradeID,
			o.SignalID,
			o.Ticker,
			string(o.Direction),
			string(o.CloseReason),
			formatFloat(o.Leverage),
			formatFloat(o.Amount),
			formatFloat(o.EntryPrice),
			formatFloat(o.ClosePrice),
			formatFloat(o.PnLAmount),
			formatFloat(o.PnLPercent),
			strconv.FormatInt(o.OpenedAt, 10),
			strconv.FormatInt(o.ClosedAt, 10),
			strconv.FormatInt(o.HoldDurationMs, 10),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", o.TradeID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
