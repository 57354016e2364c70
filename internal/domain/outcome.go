package domain

// TradeOutcome is the analytics row appended when a trade closes.
// Corresponds to trade_outcomes table in ClickHouse.
type TradeOutcome struct {
	TradeID        string
	SignalID       string
	Ticker         string
	Direction      Direction
	CloseReason    CloseReason
	Leverage       float64
	Amount         float64
	EntryPrice     float64
	ClosePrice     float64
	PnLAmount      float64
	PnLPercent     float64
	OpenedAt       int64 // Unix timestamp in milliseconds
	ClosedAt       int64 // Unix timestamp in milliseconds
	HoldDurationMs int64
}

// OutcomeSummary aggregates closed trades for one ticker.
type OutcomeSummary struct {
	Ticker        string
	TotalTrades   uint64
	Wins          uint64
	Losses        uint64
	TotalPnL      float64
	AvgPnLPercent float64
}

// OutcomeFromTrade builds the analytics row for a closed trade.
// Returns false if the trade is not closed.
func OutcomeFromTrade(t *Trade) (*TradeOutcome, bool) {
	if t.Status != TradeClosed || t.Validate() != nil || t.ClosePrice == nil {
		return nil, false
	}
	return &TradeOutcome{
		TradeID:        t.TradeID,
		SignalID:       t.SignalID,
		Ticker:         t.Ticker,
		Direction:      t.Direction,
		CloseReason:    *t.CloseReason,
		Leverage:       t.Leverage,
		Amount:         t.Amount,
		EntryPrice:     t.EntryPrice,
		ClosePrice:     *t.ClosePrice,
		PnLAmount:      *t.PnLAmount,
		PnLPercent:     *t.PnLPercent,
		OpenedAt:       t.OpenedAt,
		ClosedAt:       *t.ClosedAt,
		HoldDurationMs: *t.ClosedAt - t.OpenedAt,
	}, true
}
