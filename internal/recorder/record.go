// Package recorder persists the update stream to disk, one record per tick,
// as newline-delimited JSON or a msgpack stream, and plays recordings back
// with exact decimal fidelity.
package recorder

import (
	"fmt"
	"time"

	"gdax-feed/pkg/md"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

// LevelRecord is one book level in a recorded tick. Decimals are strings so
// precision survives the round-trip.
type LevelRecord struct {
	Price  string `json:"price" msgpack:"price"`
	Qty    string `json:"qty" msgpack:"qty"`
	Orders int    `json:"orders" msgpack:"orders"`
}

// BookRecord is the recorded book snapshot.
type BookRecord struct {
	Sequence uint64        `json:"sequence" msgpack:"sequence"`
	Bids     []LevelRecord `json:"bids" msgpack:"bids"`
	Asks     []LevelRecord `json:"asks" msgpack:"asks"`
}

// TradeRecord is one recorded trade.
type TradeRecord struct {
	Price     string `json:"price" msgpack:"price"`
	Qty       string `json:"qty" msgpack:"qty"`
	Sequence  uint64 `json:"sequence" msgpack:"sequence"`
	Aggressor string `json:"aggressor" msgpack:"aggressor"`
}

// Record is one persisted tick.
type Record struct {
	Instrument string        `json:"instrument" msgpack:"instrument"`
	Status     string        `json:"status" msgpack:"status"`
	Timestamp  string        `json:"timestamp" msgpack:"timestamp"`
	Book       BookRecord    `json:"book" msgpack:"book"`
	Trades     []TradeRecord `json:"trades" msgpack:"trades"`
}

// MakeRecord converts an update into its persisted form, truncating the book
// to depth levels per side (depth < 1 means full depth).
func MakeRecord(u md.Update, depth int) Record {
	rec := Record{
		Instrument: u.Instrument.String(),
		Status:     u.Status.String(),
		Timestamp:  u.Timestamp.UTC().Format(timestampLayout),
		Book: BookRecord{
			Sequence: u.Book.Sequence,
			Bids:     makeLevels(u.Book.Bids, depth),
			Asks:     makeLevels(u.Book.Asks, depth),
		},
		Trades: make([]TradeRecord, 0, len(u.Trades)),
	}
	for _, t := range u.Trades {
		rec.Trades = append(rec.Trades, TradeRecord{
			Price:     t.Price.String(),
			Qty:       t.Qty.String(),
			Sequence:  t.Sequence,
			Aggressor: t.Aggressor.String(),
		})
	}
	return rec
}

func makeLevels(levels []md.Level, depth int) []LevelRecord {
	n := len(levels)
	if depth >= 1 && depth < n {
		n = depth
	}
	out := make([]LevelRecord, 0, n)
	for _, lvl := range levels[:n] {
		out = append(out, LevelRecord{
			Price:  lvl.Price.String(),
			Qty:    lvl.Qty.String(),
			Orders: lvl.Orders,
		})
	}
	return out
}

// Update re-hydrates the record into an Update, parsing decimals exactly.
func (r Record) Update() (md.Update, error) {
	instrument, err := md.ParseInstrument(r.Instrument)
	if err != nil {
		return md.Update{}, err
	}
	status, err := md.ParseStatus(r.Status)
	if err != nil {
		return md.Update{}, err
	}
	ts, err := time.Parse(timestampLayout, r.Timestamp)
	if err != nil {
		return md.Update{}, fmt.Errorf("parse timestamp %q: %w", r.Timestamp, err)
	}

	u := md.Update{
		Instrument: instrument,
		Status:     status,
		Timestamp:  ts,
		Book:       md.BookSnapshot{Sequence: r.Book.Sequence},
	}
	if u.Book.Bids, err = parseLevels(r.Book.Bids); err != nil {
		return md.Update{}, err
	}
	if u.Book.Asks, err = parseLevels(r.Book.Asks); err != nil {
		return md.Update{}, err
	}
	for _, t := range r.Trades {
		side, err := md.ParseSide(t.Aggressor)
		if err != nil {
			return md.Update{}, err
		}
		price, err := md.ParsePrice(t.Price)
		if err != nil {
			return md.Update{}, err
		}
		qty, err := md.ParseQty(t.Qty)
		if err != nil {
			return md.Update{}, err
		}
		u.Trades = append(u.Trades, md.Trade{
			Aggressor: side,
			Price:     price,
			Qty:       qty,
			Sequence:  t.Sequence,
		})
	}
	return u, nil
}

func parseLevels(records []LevelRecord) ([]md.Level, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]md.Level, 0, len(records))
	for _, r := range records {
		price, err := md.ParsePrice(r.Price)
		if err != nil {
			return nil, err
		}
		qty, err := md.ParseQty(r.Qty)
		if err != nil {
			return nil, err
		}
		out = append(out, md.Level{Price: price, Qty: qty, Orders: r.Orders})
	}
	return out, nil
}
