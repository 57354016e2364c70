package domain

// Trader is one entry of the trader allow-list.
type Trader struct {
	Handle  string // e.g. "@yramki"
	Enabled bool
}

// TraderAllowList is the ordered set of trusted message authors.
// Mutated only by configuration updates.
type TraderAllowList struct {
	Traders   []Trader
	Enforce   bool    // false admits every author
	Threshold float64 // minimum similarity score in [0,1]
}
