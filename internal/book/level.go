package book

import (
	"github.com/shopspring/decimal"

	"gdax-feed/pkg/md"
)

// OrderEntry is one resting order's contribution to a level, exposed in
// insertion order by OrderBasedBook.Orders.
type OrderEntry struct {
	OrderID string
	Qty     decimal.Decimal
}

// level holds every order resting at one price on one side. Entries keep
// insertion order; index maps order id to position in entries.
type level struct {
	price   decimal.Decimal
	entries []OrderEntry
	index   map[string]int
}

func newLevel(price decimal.Decimal) *level {
	return &level{price: price, index: make(map[string]int)}
}

// addOrder appends an entry. A duplicate id replaces the quantity in place,
// keeping the entry's queue position.
func (l *level) addOrder(orderID string, qty decimal.Decimal) {
	if i, ok := l.index[orderID]; ok {
		l.entries[i].Qty = qty
		return
	}
	l.index[orderID] = len(l.entries)
	l.entries = append(l.entries, OrderEntry{OrderID: orderID, Qty: qty})
}

// changeOrder overwrites an existing entry's quantity without moving it.
func (l *level) changeOrder(orderID string, qty decimal.Decimal) bool {
	i, ok := l.index[orderID]
	if !ok {
		return false
	}
	l.entries[i].Qty = qty
	return true
}

// matchOrder subtracts tradeQty from the entry, removing it once the
// remainder is zero or the trade over-consumes it.
func (l *level) matchOrder(orderID string, tradeQty decimal.Decimal) bool {
	i, ok := l.index[orderID]
	if !ok {
		return false
	}
	remaining := l.entries[i].Qty.Sub(tradeQty)
	if remaining.Sign() <= 0 {
		l.removeAt(i)
		return true
	}
	l.entries[i].Qty = remaining
	return true
}

func (l *level) removeOrder(orderID string) bool {
	i, ok := l.index[orderID]
	if !ok {
		return false
	}
	l.removeAt(i)
	return true
}

func (l *level) removeAt(i int) {
	delete(l.index, l.entries[i].OrderID)
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	for j := i; j < len(l.entries); j++ {
		l.index[l.entries[j].OrderID] = j
	}
}

func (l *level) empty() bool { return len(l.entries) == 0 }

// summary aggregates the level into its (price, qty, orders) view.
func (l *level) summary() md.Level {
	qty := decimal.Zero
	for _, e := range l.entries {
		qty = qty.Add(e.Qty)
	}
	return md.Level{Price: l.price, Qty: qty, Orders: len(l.entries)}
}
