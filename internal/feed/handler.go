package feed

import (
	"log/slog"
	"time"

	"gdax-feed/internal/book"
	"gdax-feed/pkg/md"
)

// InstrumentHandler applies one instrument's feed events, in strict sequence
// order, to its order-based book and accumulates trades between updates.
//
// The handler trusts its input: gap detection is the gateway's job. Messages
// at or below the last applied sequence are silently discarded.
type InstrumentHandler struct {
	instrument md.Instrument
	book       *book.OrderBasedBook
	sequence   uint64
	timestamp  time.Time
	trades     []md.Trade
	status     md.Status

	// Pending state: either clean, or a book mutation is unpublished and
	// pendingSeq holds the sequence at the moment of mutation.
	pending    bool
	pendingSeq uint64

	logger *slog.Logger
}

// NewInstrumentHandler returns a handler with an empty book and Unknown status.
func NewInstrumentHandler(instrument md.Instrument, logger *slog.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		instrument: instrument,
		book:       book.New(),
		status:     md.StatusUnknown,
		logger:     logger.With("component", "handler", "instrument", instrument.String()),
	}
}

// Instrument returns the instrument this handler serves.
func (h *InstrumentHandler) Instrument() md.Instrument { return h.instrument }

// Sequence returns the last applied sequence.
func (h *InstrumentHandler) Sequence() uint64 { return h.sequence }

// Book exposes the live book for inspection; callers must not retain it
// across handler calls.
func (h *InstrumentHandler) Book() *book.OrderBasedBook { return h.book }

// HandleMessage applies one event. Duplicates (sequence at or below the last
// applied) are no-ops.
func (h *InstrumentHandler) HandleMessage(m Message) {
	if m.Sequence <= h.sequence {
		return
	}
	h.sequence = m.Sequence
	if !m.Time.IsZero() {
		h.timestamp = m.Time
	}

	switch m.Type {
	case MsgReceived:
		// Venue-level accounting only.
	case MsgOpen:
		h.book.AddOrder(m.Side, m.OrderID, m.Price, m.Qty)
		h.markPending()
	case MsgMatch:
		h.applyMatch(m)
	case MsgDone:
		if !m.HasPrice {
			// Market orders never rested; nothing to remove.
			return
		}
		if h.book.RemoveOrder(m.Side, m.OrderID, m.Price) {
			h.markPending()
		}
	case MsgChange:
		if m.FundsChange {
			return
		}
		if h.book.ChangeOrder(m.Side, m.OrderID, m.Price, m.Qty) {
			h.markPending()
		}
	}
}

func (h *InstrumentHandler) applyMatch(m Message) {
	trade := md.Trade{
		Aggressor:    m.Side.Opposite(),
		Price:        m.Price,
		Qty:          m.Qty,
		Sequence:     m.Sequence,
		MakerOrderID: m.MakerOrderID,
		TakerOrderID: m.TakerOrderID,
		Time:         m.Time,
	}
	if !h.book.MatchOrder(m.Side, m.MakerOrderID, m.Price, m.Qty) {
		h.logger.Warn("match against unknown order",
			"order_id", m.MakerOrderID,
			"sequence", m.Sequence,
		)
	}
	h.trades = append(h.trades, trade)
	h.markPending()
}

// MakeUpdate drains pending state into an Update, or returns nil when
// nothing changed since the last one. The book is labelled with the sequence
// of the latest unpublished mutation.
func (h *InstrumentHandler) MakeUpdate() *md.Update {
	if !h.pending && len(h.trades) == 0 {
		return nil
	}
	h.status = md.StatusOK
	u := md.Update{
		Instrument: h.instrument,
		Book:       h.book.Snapshot(h.takeBookID()),
		Trades:     h.takeTrades(),
		Status:     md.StatusOK,
		Timestamp:  h.timestamp,
	}
	return &u
}

// MakeGappedUpdate always emits an update with Gapped status, labelling the
// book with the last known sequence, so consumers observe the transition
// into recovery.
func (h *InstrumentHandler) MakeGappedUpdate() md.Update {
	h.status = md.StatusGapped
	// The snapshot below already reflects any unpublished mutation; clearing
	// pending keeps a stale OK update from following this one.
	h.pending = false
	h.pendingSeq = 0
	return md.Update{
		Instrument: h.instrument,
		Book:       h.book.Snapshot(h.sequence),
		Trades:     h.takeTrades(),
		Status:     md.StatusGapped,
		Timestamp:  h.timestamp,
	}
}

// Recover atomically replaces the book and resets the sequence baseline, and
// marks the handler pending so the first post-recovery MakeUpdate emits a
// fresh snapshot.
func (h *InstrumentHandler) Recover(sequence uint64, b *book.OrderBasedBook) {
	h.sequence = sequence
	h.book = b
	h.markPending()
}

func (h *InstrumentHandler) markPending() {
	h.pending = true
	h.pendingSeq = h.sequence
}

func (h *InstrumentHandler) takeBookID() uint64 {
	if h.pending {
		h.pending = false
		seq := h.pendingSeq
		h.pendingSeq = 0
		return seq
	}
	if len(h.trades) > 0 {
		return h.trades[0].Sequence
	}
	return h.sequence
}

func (h *InstrumentHandler) takeTrades() []md.Trade {
	trades := h.trades
	h.trades = nil
	return trades
}
