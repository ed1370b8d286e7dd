// gateway.go implements the sequenced feed gateway: it owns the venue
// WebSocket, checks sequence integrity on every message, orchestrates
// snapshot recovery when a gap appears, and publishes Updates to registered
// consumers.
//
// Two goroutines run under one tomb:
//
//   - reader: dials, subscribes, and enqueues parsed frames. It never blocks
//     on consumers.
//   - processor: owns all handler and book state. It receives one message,
//     drains whatever else is queued, and emits at most one Update per batch,
//     so consumer wake-ups are conflated without losing sequence labels.
//
// Recovery fetches run as child goroutines; their results cross back to the
// processor over a channel tagged with an attempt counter, so a cancelled
// attempt's result is discarded and book state stays single-owner.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	tomb "gopkg.in/tomb.v2"

	"gdax-feed/internal/book"
	"gdax-feed/pkg/md"
)

const (
	readTimeout  = 90 * time.Second // venue heartbeats well inside this
	writeTimeout = 10 * time.Second
	queueSize    = 4096 // reader→processor buffer; drained on gap
)

// ErrNotSubscribed is returned by Launch when no instrument was registered.
var ErrNotSubscribed = errors.New("no subscribed instruments")

// Callback receives published updates. Callbacks run on the gateway's
// processor goroutine and must return promptly; subscribers conform by only
// updating internal state.
type Callback func(md.Update)

// subscribeMsg is the venue's channel subscription request.
type subscribeMsg struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
}

// snapshotResult carries a finished (or failed) recovery fetch back to the
// processor goroutine.
type snapshotResult struct {
	product  string
	attempt  uint64
	sequence uint64
	book     *book.OrderBasedBook
	err      error
}

// productState is the per-instrument slice of gateway state. Only the
// processor goroutine touches it after launch.
type productState struct {
	instrument md.Instrument
	handler    *InstrumentHandler
	recovery   *RecoveryHandler
	callbacks  []Callback

	inSeq      uint64 // last sequence seen on the socket; 0 = Init
	recovering bool
	forceGap   bool // set when a recovery fetch failed; next message re-gaps
	attempt    uint64
	cancel     context.CancelFunc // cancels the in-flight recovery fetch
}

// Gateway serves one venue connection for any number of instruments.
type Gateway struct {
	wsURL   string
	restURL string

	mu     sync.Mutex // guards states map during registration
	states map[string]*productState

	conn   *websocket.Conn
	connMu sync.Mutex

	msgCh  chan Message
	snapCh chan snapshotResult

	t       tomb.Tomb
	metrics *Metrics
	logger  *slog.Logger
}

// NewGateway creates a gateway for one venue. restURL is the snapshot base
// URL (production or sandbox). metrics may be nil.
func NewGateway(wsURL, restURL string, metrics *Metrics, logger *slog.Logger) *Gateway {
	return &Gateway{
		wsURL:   wsURL,
		restURL: restURL,
		states:  make(map[string]*productState),
		msgCh:   make(chan Message, queueSize),
		snapCh:  make(chan snapshotResult, 1),
		metrics: metrics,
		logger:  logger.With("component", "gateway"),
	}
}

// Subscribe registers interest in an instrument, allocating its handler.
// Must be called before Launch.
func (g *Gateway) Subscribe(instrument md.Instrument) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribeLocked(instrument)
}

func (g *Gateway) subscribeLocked(instrument md.Instrument) *productState {
	product := instrument.Symbol()
	if st, ok := g.states[product]; ok {
		return st
	}
	st := &productState{
		instrument: instrument,
		handler:    NewInstrumentHandler(instrument, g.logger),
		recovery:   NewRecoveryHandler(g.restURL, g.logger),
	}
	g.states[product] = st
	return st
}

// Register adds a consumer callback for an instrument, subscribing
// implicitly on the first registration. Must be called before Launch.
func (g *Gateway) Register(instrument md.Instrument, cb Callback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.subscribeLocked(instrument)
	st.callbacks = append(st.callbacks, cb)
}

// Launch starts the reader and processor goroutines.
func (g *Gateway) Launch() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.states) == 0 {
		return ErrNotSubscribed
	}
	g.t.Go(g.readSocket)
	g.t.Go(g.processMessages)
	return nil
}

// Run launches the gateway and blocks until ctx is cancelled or the gateway
// dies, then shuts it down.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Launch(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		g.RequestShutdown()
	case <-g.t.Dying():
	}
	return g.Wait()
}

// RequestShutdown cancels the gateway's tasks and closes the socket. Safe to
// call more than once.
func (g *Gateway) RequestShutdown() {
	g.t.Kill(nil)
	g.closeConn()
}

// Wait blocks until every gateway goroutine has exited.
func (g *Gateway) Wait() error {
	err := g.t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (g *Gateway) closeConn() {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
}

// readSocket dials the venue, subscribes every registered product, and
// enqueues parsed frames. Socket errors end the task (and the gateway);
// reconnect policy belongs to the supervisor.
func (g *Gateway) readSocket() error {
	ctx := g.t.Context(nil)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", g.wsURL, err)
	}
	g.connMu.Lock()
	g.conn = conn
	g.connMu.Unlock()
	defer g.closeConn()

	for product := range g.states {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", ProductID: product}); err != nil {
			return fmt.Errorf("subscribe %s: %w", product, err)
		}
		g.logger.Info("subscribed", "product", product)
	}

	for {
		if g.t.Err() != tomb.ErrStillAlive {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if g.t.Err() != tomb.ErrStillAlive {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		g.metrics.incMessages()

		m, err := ParseMessage(data)
		if err != nil {
			g.metrics.incParseErrors()
			g.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}
		select {
		case g.msgCh <- m:
		case <-g.t.Dying():
			return nil
		}
	}
}

// processMessages is the processor loop: receive one message, absorb the
// rest of the queue, then emit at most one update per product.
func (g *Gateway) processMessages() error {
	for {
		select {
		case <-g.t.Dying():
			return nil
		case res := <-g.snapCh:
			g.finishRecovery(res)
		case m := <-g.msgCh:
			g.onMessage(m)
		drain:
			for {
				select {
				case m := <-g.msgCh:
					g.onMessage(m)
				default:
					break drain
				}
			}
			g.flushUpdates()
		}
	}
}

// routeMessage picks the product state for a message. Messages without a
// product id route to the sole subscription when there is exactly one.
func (g *Gateway) routeMessage(m Message) *productState {
	if m.Product != "" {
		return g.states[m.Product]
	}
	if len(g.states) == 1 {
		for _, st := range g.states {
			return st
		}
	}
	return nil
}

// onMessage performs the sequence check and routes the message to the
// instrument handler, the recovery buffer, or gap handling.
func (g *Gateway) onMessage(m Message) {
	st := g.routeMessage(m)
	if st == nil {
		g.logger.Debug("dropping message for unknown product", "product", m.Product)
		return
	}

	if st.inSeq == 0 {
		// First message establishes the sequence baseline.
		st.inSeq = m.Sequence
		g.metrics.setLastSequence(m.Sequence)
		g.deliver(st, m)
		return
	}
	if m.Sequence <= st.inSeq {
		return // duplicate or replay
	}
	expected := st.inSeq + 1
	st.inSeq = m.Sequence
	g.metrics.setLastSequence(m.Sequence)

	if st.forceGap {
		// The previous recovery fetch failed; re-enter recovery off this
		// message regardless of contiguity.
		st.forceGap = false
		g.beginGap(st, expected, m.Sequence)
		return
	}
	if m.Sequence != expected {
		g.beginGap(st, expected, m.Sequence)
		return
	}
	g.deliver(st, m)
}

func (g *Gateway) deliver(st *productState, m Message) {
	if st.recovering {
		st.recovery.Buffer(m)
		return
	}
	st.handler.HandleMessage(m)
}

// beginGap tears down any in-flight recovery, clears queued and buffered
// messages, tells consumers the data is gapped, and starts a new recovery.
func (g *Gateway) beginGap(st *productState, expected, received uint64) {
	if st.recovering {
		g.logger.Warn("gap detected during recovery",
			"product", st.instrument.Symbol(),
			"expected", expected,
			"received", received,
		)
		if st.cancel != nil {
			st.cancel()
		}
	} else {
		g.logger.Warn("gap detected",
			"product", st.instrument.Symbol(),
			"expected", expected,
			"received", received,
		)
	}
	g.metrics.incGaps()
	g.drainQueue()
	st.recovery.DropBuffered()
	g.publish(st, st.handler.MakeGappedUpdate())
	g.startRecovery(st)
}

func (g *Gateway) drainQueue() {
	for {
		select {
		case <-g.msgCh:
		default:
			return
		}
	}
}

// startRecovery spawns a snapshot fetch. The attempt counter lets the
// processor discard results from attempts that were superseded by a nested
// gap.
func (g *Gateway) startRecovery(st *productState) {
	st.recovering = true
	st.attempt++
	attempt := st.attempt
	product := st.instrument.Symbol()

	ctx, cancel := context.WithCancel(g.t.Context(nil))
	st.cancel = cancel

	g.t.Go(func() error {
		seq, b, err := st.recovery.FetchSnapshot(ctx, product)
		select {
		case g.snapCh <- snapshotResult{product: product, attempt: attempt, sequence: seq, book: b, err: err}:
		case <-ctx.Done():
		}
		return nil
	})
}

// finishRecovery applies a completed fetch on the processor goroutine:
// swap the handler's book, replay buffered messages past the snapshot, and
// publish the fresh state. A failed fetch arms forceGap so the next message
// naturally retries.
func (g *Gateway) finishRecovery(res snapshotResult) {
	st := g.states[res.product]
	if st == nil || !st.recovering || res.attempt != st.attempt {
		return // superseded attempt
	}
	st.recovering = false
	st.cancel = nil

	if res.err != nil {
		if !errors.Is(res.err, context.Canceled) {
			g.logger.Error("recovery fetch failed", "product", res.product, "error", res.err)
		}
		st.recovery.DropBuffered()
		st.forceGap = true
		return
	}

	st.handler.Recover(res.sequence, res.book)
	st.recovery.Replay(st.handler.HandleMessage)
	g.metrics.incRecoveries()
	g.logger.Info("recovery complete",
		"product", res.product,
		"sequence", res.sequence,
		"resumed_at", st.handler.Sequence(),
	)
	if u := st.handler.MakeUpdate(); u != nil {
		g.publish(st, *u)
	}
}

// flushUpdates emits at most one update per product for the batch just
// absorbed.
func (g *Gateway) flushUpdates() {
	for _, st := range g.states {
		if u := st.handler.MakeUpdate(); u != nil {
			g.publish(st, *u)
		}
	}
}

// publish fans an update out to the product's callbacks. A panicking
// callback is isolated and logged; the rest still run.
func (g *Gateway) publish(st *productState, u md.Update) {
	g.metrics.incUpdates()
	for _, cb := range st.callbacks {
		g.invoke(cb, u)
	}
}

func (g *Gateway) invoke(cb Callback, u md.Update) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("consumer callback panicked",
				"instrument", u.Instrument.String(),
				"panic", r,
			)
		}
	}()
	cb(u)
}
