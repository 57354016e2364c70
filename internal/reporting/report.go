// Package reporting renders trading performance reports as Markdown and CSV.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/metrics"
)

// Report file names written by WriteFiles.
const (
	MarkdownFile = "REPORT.md"
	CSVFile      = "TRADE_OUTCOMES.csv"
)

// Report is a performance report over closed trades in a time range.
type Report struct {
	GeneratedAt time.Time
	From        int64 // Unix ms
	To          int64 // Unix ms

	Overall       *metrics.Stats
	ByTicker      []*metrics.Stats
	ByDirection   []*metrics.Stats
	ByCloseReason []*metrics.Stats

	// Best and worst trades by P&L percent.
	Best  []*domain.TradeOutcome
	Worst []*domain.TradeOutcome

	Trades []*domain.TradeOutcome // chronological
}

// WriteFiles writes the Markdown report and the trade CSV into dir.
// Returns the paths written.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	md := filepath.Join(dir, MarkdownFile)
	if err := os.WriteFile(md, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", MarkdownFile, err)
	}

	data, err := RenderCSV(r.Trades)
	if err != nil {
		return nil, err
	}
	csvPath := filepath.Join(dir, CSVFile)
	if err := os.WriteFile(csvPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", CSVFile, err)
	}

	return []string{md, csvPath}, nil
}
