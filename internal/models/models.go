package models

import "github.com/shopspring/decimal"

// Side is the direction of a detected rebalance action.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// RebalanceEvent is one buy/sell signal published by the analytics source for
// a given calendar date. MarketValue stays zero until the sizer assigns it;
// every other field is fixed at parse time.
type RebalanceEvent struct {
	TransactionID  string
	Side           Side
	ActionDate     string // "2006-01-02", the date the source attributes the action to
	Ticker         string
	CompanyName    string
	StartingWeight string // portfolio weight before the action, "" if the feed omitted it
	NewWeight      string // portfolio weight after the action, "" if the feed omitted it
	KnownPrice     string // last price as published by the feed, "" if absent
	MarketValue    decimal.Decimal
}

// Order is a normalized trade instruction, produced 1:1 from a sized
// RebalanceEvent and consumed by the broker gateway.
type Order struct {
	Side        Side
	Ticker      string
	CompanyName string
	MarketValue decimal.Decimal  // target dollar amount to fill
	KnownPrice  *decimal.Decimal // nil when the feed gave no usable price
}

// CountSides returns how many events are buys and how many are sells.
func CountSides(events []RebalanceEvent) (buys, sells int) {
	for _, ev := range events {
		switch ev.Side {
		case SideBuy:
			buys++
		case SideSell:
			sells++
		}
	}
	return buys, sells
}
