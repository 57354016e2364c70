package domain

// Order is the execution request handed to a broker.
type Order struct {
	ClientOrderID string // idempotency key for the exchange
	Ticker        string
	Direction     Direction
	EntryPrice    float64
	StopPrice     float64
	TargetPrice   float64
	Amount        float64 // margin in quote currency
	Leverage      float64
}

// Fill is the broker acknowledgement of an executed order.
type Fill struct {
	OrderIDs  []string // entry first, then attached TP/SL orders if any
	FillPrice float64
}
