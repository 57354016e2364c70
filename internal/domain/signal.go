package domain

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// DirectionOf maps a parser long/short flag to a Direction.
func DirectionOf(isLong bool) Direction {
	if isLong {
		return DirectionLong
	}
	return DirectionShort
}

// IsLong reports whether the direction is long.
func (d Direction) IsLong() bool {
	return d == DirectionLong
}

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// SignalStatus is the lifecycle flag of a Signal.
// Exactly one value holds at any time; executed and ignored are terminal.
type SignalStatus string

const (
	SignalPending  SignalStatus = "pending"
	SignalExecuted SignalStatus = "executed"
	SignalIgnored  SignalStatus = "ignored"
)

// IsTerminal reports whether no further transition is permitted.
func (s SignalStatus) IsTerminal() bool {
	return s == SignalExecuted || s == SignalIgnored
}

// IsValid checks if the status is a valid value.
func (s SignalStatus) IsValid() bool {
	return s == SignalPending || s == SignalExecuted || s == SignalIgnored
}

// ParsedSignal holds trade parameters extracted from message text.
type ParsedSignal struct {
	Ticker        string
	IsLong        bool
	EntryPrice    float64
	StopLossPrice float64
	TargetPrice   float64   // first target
	Targets       []float64 // all targets in message order, Targets[0] == TargetPrice
	RiskPercent   float64   // defaults to 1
	Leverage      *float64  // detected leverage (nullable)
	Status        string    // trailing "Status: ..." line, e.g. "Valid limit order"
	PostedTime    string    // "3:45 PM" from a "Today at 3:45 PM" header, if captured
}

// Direction returns the trade side of the parsed signal.
func (p ParsedSignal) Direction() Direction {
	return DirectionOf(p.IsLong)
}

// Signal is a structured trade recommendation derived from one RawMessage.
// Corresponds to signals table in PostgreSQL.
type Signal struct {
	SignalID        string // PRIMARY KEY, deterministic hash of channel + message id
	SourceMessageID string // UNIQUE (channel_id, source_message_id)
	ChannelID       string // source channel
	Author          string // trader handle
	Ticker          string // upper-case symbol, e.g. BTC
	Direction       Direction
	EntryPrice      float64
	StopLossPrice   float64
	TargetPrices    []float64 // one or more, first is primary
	RiskPercent     float64
	Leverage        *float64 // nullable
	Status          SignalStatus
	DecisionReason  *string // last skip/ignore reason (nullable)
	RawText         string  // text the signal was parsed from
	CreatedAt       int64   // Unix timestamp in milliseconds
	UpdatedAt       int64   // Unix timestamp in milliseconds
}

// TargetPrice returns the primary target.
func (s *Signal) TargetPrice() float64 {
	if len(s.TargetPrices) == 0 {
		return 0
	}
	return s.TargetPrices[0]
}

// Parsed rebuilds the parser view of a stored signal.
func (s *Signal) Parsed() ParsedSignal {
	return ParsedSignal{
		Ticker:        s.Ticker,
		IsLong:        s.Direction.IsLong(),
		EntryPrice:    s.EntryPrice,
		StopLossPrice: s.StopLossPrice,
		TargetPrice:   s.TargetPrice(),
		Targets:       append([]float64(nil), s.TargetPrices...),
		RiskPercent:   s.RiskPercent,
		Leverage:      s.Leverage,
	}
}

// Clone returns a deep copy.
func (s *Signal) Clone() *Signal {
	c := *s
	c.TargetPrices = append([]float64(nil), s.TargetPrices...)
	if s.Leverage != nil {
		v := *s.Leverage
		c.Leverage = &v
	}
	if s.DecisionReason != nil {
		v := *s.DecisionReason
		c.DecisionReason = &v
	}
	return &c
}
