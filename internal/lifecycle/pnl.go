package lifecycle

import (
	"github.com/shopspring/decimal"

	"signal-trader/internal/domain"
)

const pnlPlaces = 8

// ComputePnL returns the realized P&L amount and percent of margin.
//
//	entryValue = amount × leverage
//	long:  pnl = (close − entry) / entry × entryValue
//	short: pnl = (entry − close) / entry × entryValue
//	pct    = pnl / amount × 100
func ComputePnL(direction domain.Direction, entryPrice, closePrice, amount, leverage float64) (pnlAmount, pnlPercent float64) {
	entry := decimal.NewFromFloat(entryPrice)
	if entry.IsZero() || amount == 0 {
		return 0, 0
	}
	closeP := decimal.NewFromFloat(closePrice)
	margin := decimal.NewFromFloat(amount)
	entryValue := margin.Mul(decimal.NewFromFloat(leverage))

	move := closeP.Sub(entry)
	if !direction.IsLong() {
		move = entry.Sub(closeP)
	}

	pnl := move.Div(entry).Mul(entryValue)
	pct := pnl.Div(margin).Mul(decimal.NewFromInt(100))

	return pnl.Round(pnlPlaces).InexactFloat64(), pct.Round(pnlPlaces).InexactFloat64()
}
