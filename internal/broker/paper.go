package broker

import (
	"context"
	"log"
	"sync/atomic"

	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
)

// PaperExecutor fills every valid order at its entry price without
// contacting an exchange.
type PaperExecutor struct {
	seq    atomic.Uint64
	logger *log.Logger
}

// NewPaperExecutor creates a paper executor.
func NewPaperExecutor(logger *log.Logger) *PaperExecutor {
	if logger == nil {
		logger = log.Default()
	}
	return &PaperExecutor{logger: logger}
}

// Compile-time interface check.
var _ lifecycle.Executor = (*PaperExecutor)(nil)

// Execute validates o and fills it at the entry price.
func (p *PaperExecutor) Execute(ctx context.Context, o domain.Order) (*domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateOrder(o); err != nil {
		return nil, &domain.ExecutionError{Ticker: o.Ticker, Err: err}
	}
	n := p.seq.Add(1)
	p.logger.Printf("Paper fill #%d: %s %s qty=%d @ %v (sl %v, tp %v)",
		n, side(o.Direction), Symbol(o.Ticker), OrderQty(o.Amount, o.Leverage), o.EntryPrice, o.StopPrice, o.TargetPrice)
	return &domain.Fill{OrderIDs: []string{"paper-" + o.ClientOrderID}, FillPrice: o.EntryPrice}, nil
}
