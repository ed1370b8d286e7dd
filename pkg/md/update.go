package md

import "time"

// Update carries one instant of market data for one instrument: a book
// snapshot, the trades observed since the previous update, a health status,
// and the venue timestamp of the last applied message.
//
// Updates are immutable by convention: once published, no field is mutated.
// The book's sequence splits the trade list — trades at or below it are
// already reflected in the book, trades above it will be reflected by a
// subsequent book.
type Update struct {
	Instrument Instrument
	Book       BookSnapshot
	Trades     []Trade
	Status     Status
	Timestamp  time.Time
}

// IsOK reports whether the update carries clean, sequence-contiguous data.
func (u Update) IsOK() bool { return u.Status == StatusOK }

// Sequence returns the book's sequence id.
func (u Update) Sequence() uint64 { return u.Book.Sequence }

// TradesBeforeBook returns the trades already reflected in the book.
func (u Update) TradesBeforeBook() []Trade {
	var out []Trade
	for _, t := range u.Trades {
		if t.Sequence <= u.Book.Sequence {
			out = append(out, t)
		}
	}
	return out
}

// TradesAfterBook returns the trades that post-date the book moment.
func (u Update) TradesAfterBook() []Trade {
	var out []Trade
	for _, t := range u.Trades {
		if t.Sequence > u.Book.Sequence {
			out = append(out, t)
		}
	}
	return out
}

// ReplaceTrades returns a copy of the update carrying a different trade list.
// Used by the subscriber to attach the full accumulated trade history to the
// latest conflated book.
func ReplaceTrades(u Update, trades []Trade) Update {
	u.Trades = trades
	return u
}
