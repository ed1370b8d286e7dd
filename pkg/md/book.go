package md

import "github.com/shopspring/decimal"

// Level summarises all orders resting at one price on one side.
// Price and Qty marshal as strings, preserving exact decimal values.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Qty    decimal.Decimal `json:"qty"`
	Orders int             `json:"orders"`
}

// BookSnapshot is an immutable view of one instrument's book at one sequence.
// Bids are sorted descending by price, asks ascending, so index 0 is the top
// of book on both sides.
type BookSnapshot struct {
	Sequence uint64  `json:"sequence"`
	Bids     []Level `json:"bids"`
	Asks     []Level `json:"asks"`
}

// BidDepth returns the number of bid levels.
func (b BookSnapshot) BidDepth() int { return len(b.Bids) }

// AskDepth returns the number of ask levels.
func (b BookSnapshot) AskDepth() int { return len(b.Asks) }

// Depth returns the deeper of the two sides.
func (b BookSnapshot) Depth() int {
	return max(len(b.Bids), len(b.Asks))
}

// BestBid returns the top bid level, if any.
func (b BookSnapshot) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b BookSnapshot) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}
