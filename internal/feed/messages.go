// Package feed implements the sequenced market-data pipeline: wire message
// parsing, the per-instrument event handler, snapshot recovery, the feed
// gateway that owns the venue socket, and the conflating subscriber.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gdax-feed/pkg/md"
)

// MessageType enumerates the venue's order-level feed events.
type MessageType int8

const (
	MsgReceived MessageType = iota // venue ack, no book effect
	MsgOpen                        // order rests on the book
	MsgMatch                       // trade against a resting order
	MsgDone                        // resting order removed
	MsgChange                      // resting order resized
)

func (t MessageType) String() string {
	switch t {
	case MsgReceived:
		return "received"
	case MsgOpen:
		return "open"
	case MsgMatch:
		return "match"
	case MsgDone:
		return "done"
	case MsgChange:
		return "change"
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Message is one parsed feed event. It is a tagged variant: Type selects
// which fields are meaningful.
//
//	MsgOpen:   Side, OrderID, Price, Qty (remaining size)
//	MsgMatch:  Side (maker's side), MakerOrderID, TakerOrderID, Price, Qty
//	MsgDone:   Side, OrderID, Price (HasPrice false for market orders)
//	MsgChange: Side, OrderID, Price, Qty (new size; FundsChange true when the
//	           change was expressed in funds and carries no size)
//	MsgReceived: sequence accounting only
type Message struct {
	Type     MessageType
	Product  string
	Sequence uint64
	Time     time.Time

	Side         md.Side
	OrderID      string
	MakerOrderID string
	TakerOrderID string
	Price        decimal.Decimal
	HasPrice     bool
	Qty          decimal.Decimal
	FundsChange  bool
}

// wireMessage mirrors the venue JSON. Optional fields are pointers so their
// absence is distinguishable from an empty value.
type wireMessage struct {
	Type          string  `json:"type"`
	ProductID     string  `json:"product_id"`
	Sequence      uint64  `json:"sequence"`
	Time          string  `json:"time"`
	Side          string  `json:"side"`
	OrderID       string  `json:"order_id"`
	MakerOrderID  string  `json:"maker_order_id"`
	TakerOrderID  string  `json:"taker_order_id"`
	Price         *string `json:"price"`
	RemainingSize *string `json:"remaining_size"`
	Size          *string `json:"size"`
	NewSize       *string `json:"new_size"`
	NewFunds      *string `json:"new_funds"`
}

// ParseMessage parses one raw feed frame into a Message. Unknown event types
// and missing required fields are parse errors; the caller drops the frame.
func ParseMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("unmarshal feed message: %w", err)
	}
	if w.Sequence == 0 {
		return Message{}, fmt.Errorf("%s message without sequence", w.Type)
	}

	m := Message{Product: w.ProductID, Sequence: w.Sequence}
	if w.Time != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.Time)
		if err != nil {
			return Message{}, fmt.Errorf("parse time %q: %w", w.Time, err)
		}
		m.Time = ts
	}

	switch w.Type {
	case "received":
		m.Type = MsgReceived
		return m, nil
	case "open":
		m.Type = MsgOpen
		if err := m.parseSide(w.Side); err != nil {
			return Message{}, err
		}
		m.OrderID = w.OrderID
		if err := m.parsePrice(w.Price); err != nil {
			return Message{}, err
		}
		if !m.HasPrice {
			return Message{}, fmt.Errorf("open message without price")
		}
		return m, m.parseQty(w.RemainingSize, "remaining_size")
	case "match":
		m.Type = MsgMatch
		if err := m.parseSide(w.Side); err != nil {
			return Message{}, err
		}
		m.MakerOrderID = w.MakerOrderID
		m.TakerOrderID = w.TakerOrderID
		if err := m.parsePrice(w.Price); err != nil {
			return Message{}, err
		}
		if !m.HasPrice {
			return Message{}, fmt.Errorf("match message without price")
		}
		return m, m.parseQty(w.Size, "size")
	case "done":
		m.Type = MsgDone
		if err := m.parseSide(w.Side); err != nil {
			return Message{}, err
		}
		m.OrderID = w.OrderID
		// Market-order dones carry no price; the handler ignores them.
		return m, m.parsePrice(w.Price)
	case "change":
		m.Type = MsgChange
		if err := m.parseSide(w.Side); err != nil {
			return Message{}, err
		}
		m.OrderID = w.OrderID
		if w.NewFunds != nil {
			// Changed market orders are expressed in funds and have no
			// book effect.
			m.FundsChange = true
			return m, nil
		}
		if err := m.parsePrice(w.Price); err != nil {
			return Message{}, err
		}
		return m, m.parseQty(w.NewSize, "new_size")
	}
	return Message{}, fmt.Errorf("unknown message type %q", w.Type)
}

func (m *Message) parseSide(s string) error {
	side, err := md.ParseSide(s)
	if err != nil {
		return err
	}
	m.Side = side
	return nil
}

func (m *Message) parsePrice(p *string) error {
	if p == nil || *p == "" {
		return nil
	}
	px, err := md.ParsePrice(*p)
	if err != nil {
		return err
	}
	m.Price = px
	m.HasPrice = true
	return nil
}

func (m *Message) parseQty(q *string, field string) error {
	if q == nil {
		return fmt.Errorf("%s message without %s", m.Type, field)
	}
	qty, err := md.ParseQty(*q)
	if err != nil {
		return err
	}
	m.Qty = qty
	return nil
}
