// Package book implements the order-based limit order book: every individual
// resting order is tracked by venue order id, not just per-level aggregates.
//
// Each side is a btree of price levels — bids sorted descending, asks
// ascending — and each level keeps its orders in insertion order, so the
// book can answer both "what does the ladder look like" (Snapshot) and
// "who is queued at this price" (Orders).
//
// The book is not safe for concurrent use; the feed gateway confines it to a
// single goroutine.
package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"gdax-feed/pkg/md"
)

// OrderBasedBook is the per-instrument book, C2 of the feed pipeline.
type OrderBasedBook struct {
	bids *btree.BTreeG[*level]
	asks *btree.BTreeG[*level]
}

// New returns an empty book.
func New() *OrderBasedBook {
	return &OrderBasedBook{
		bids: btree.NewBTreeG(func(a, b *level) bool {
			return a.price.Cmp(b.price) > 0 // best bid first
		}),
		asks: btree.NewBTreeG(func(a, b *level) bool {
			return a.price.Cmp(b.price) < 0 // best ask first
		}),
	}
}

// AddOrder rests an order at (side, price), creating the level if needed.
// A duplicate order id replaces the quantity in place at the same side/price;
// the caller's sequence discipline prevents cross-price duplicates.
func (b *OrderBasedBook) AddOrder(side md.Side, orderID string, price, qty decimal.Decimal) {
	b.fetchLevel(side, price).addOrder(orderID, qty)
}

// ChangeOrder updates the quantity of a resting order without re-pegging it
// to the back of its level. Returns whether the order existed.
func (b *OrderBasedBook) ChangeOrder(side md.Side, orderID string, price, qty decimal.Decimal) bool {
	lvl, ok := b.lookupLevel(side, price)
	if !ok {
		return false
	}
	return lvl.changeOrder(orderID, qty)
}

// MatchOrder subtracts tradeQty from a resting order. A remainder of zero or
// less removes the order; an emptied level is dropped. Returns whether the
// order existed.
func (b *OrderBasedBook) MatchOrder(side md.Side, orderID string, price, tradeQty decimal.Decimal) bool {
	lvl, ok := b.lookupLevel(side, price)
	if !ok {
		return false
	}
	matched := lvl.matchOrder(orderID, tradeQty)
	if lvl.empty() {
		b.removeLevel(side, price)
	}
	return matched
}

// RemoveOrder drops a resting order, and its level if that leaves it empty.
// Returns whether the order existed.
func (b *OrderBasedBook) RemoveOrder(side md.Side, orderID string, price decimal.Decimal) bool {
	lvl, ok := b.lookupLevel(side, price)
	if !ok {
		return false
	}
	removed := lvl.removeOrder(orderID)
	if lvl.empty() {
		b.removeLevel(side, price)
	}
	return removed
}

// Clear empties both sides.
func (b *OrderBasedBook) Clear() {
	b.bids.Clear()
	b.asks.Clear()
}

// Snapshot materialises both sides with per-level aggregates, labelled with
// the given sequence. Bids descend, asks ascend.
func (b *OrderBasedBook) Snapshot(sequence uint64) md.BookSnapshot {
	snap := md.BookSnapshot{
		Sequence: sequence,
		Bids:     make([]md.Level, 0, b.bids.Len()),
		Asks:     make([]md.Level, 0, b.asks.Len()),
	}
	b.bids.Scan(func(lvl *level) bool {
		snap.Bids = append(snap.Bids, lvl.summary())
		return true
	})
	b.asks.Scan(func(lvl *level) bool {
		snap.Asks = append(snap.Asks, lvl.summary())
		return true
	})
	return snap
}

// Orders returns the level's entries in insertion order, or nil if the level
// does not exist. The slice is a copy.
func (b *OrderBasedBook) Orders(side md.Side, price decimal.Decimal) []OrderEntry {
	lvl, ok := b.lookupLevel(side, price)
	if !ok {
		return nil
	}
	out := make([]OrderEntry, len(lvl.entries))
	copy(out, lvl.entries)
	return out
}

// SideQty returns the summed quantity of every order on one side.
func (b *OrderBasedBook) SideQty(side md.Side) decimal.Decimal {
	total := decimal.Zero
	b.chooseSide(side).Scan(func(lvl *level) bool {
		total = total.Add(lvl.summary().Qty)
		return true
	})
	return total
}

func (b *OrderBasedBook) chooseSide(side md.Side) *btree.BTreeG[*level] {
	if side == md.Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBasedBook) fetchLevel(side md.Side, price decimal.Decimal) *level {
	tree := b.chooseSide(side)
	if lvl, ok := tree.Get(&level{price: price}); ok {
		return lvl
	}
	lvl := newLevel(price)
	tree.Set(lvl)
	return lvl
}

func (b *OrderBasedBook) lookupLevel(side md.Side, price decimal.Decimal) (*level, bool) {
	return b.chooseSide(side).Get(&level{price: price})
}

func (b *OrderBasedBook) removeLevel(side md.Side, price decimal.Decimal) {
	b.chooseSide(side).Delete(&level{price: price})
}
