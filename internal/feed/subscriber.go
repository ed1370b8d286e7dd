package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gdax-feed/pkg/md"
)

// ErrNoData is returned by FetchNowait when no new update is available.
var ErrNoData = errors.New("no update available")

const defaultUpdateCache = 2

// Subscriber is a per-instrument consumer endpoint. It conflates book
// updates — only the latest K are retained — while preserving the complete
// trade stream: trades from every intermediate update accumulate until the
// next Fetch.
//
// OnUpdate runs on the gateway's processor goroutine and only touches
// internal state, so it returns promptly. Fetch and FetchNowait are for the
// consumer's own goroutine.
type Subscriber struct {
	instrument md.Instrument

	mu            sync.Mutex
	ring          []md.Update // at most cacheSize entries, oldest first
	cacheSize     int
	pendingTrades []md.Trade

	signal chan struct{} // capacity 1: "an unseen update exists"
	logger *slog.Logger
}

// SubscriberOption tunes a subscriber.
type SubscriberOption func(*Subscriber)

// WithUpdateCache sets how many conflated updates the ring retains (min 1).
func WithUpdateCache(n int) SubscriberOption {
	return func(s *Subscriber) {
		if n >= 1 {
			s.cacheSize = n
		}
	}
}

// NewSubscriber creates a subscriber and registers it with the gateway.
// Must be called before the gateway is launched.
func NewSubscriber(gw *Gateway, instrument md.Instrument, logger *slog.Logger, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		instrument: instrument,
		cacheSize:  defaultUpdateCache,
		signal:     make(chan struct{}, 1),
		logger:     logger.With("component", "subscriber", "instrument", instrument.String()),
	}
	for _, opt := range opts {
		opt(s)
	}
	gw.Register(instrument, s.OnUpdate)
	return s
}

// Instrument returns the instrument this subscriber follows.
func (s *Subscriber) Instrument() md.Instrument { return s.instrument }

// OnUpdate accepts a gateway update. Updates whose book sequence moves
// backwards are dropped — the contract is non-strict monotonicity, where an
// equal sequence means "no new book, new trades only".
func (s *Subscriber) OnUpdate(u md.Update) {
	s.mu.Lock()
	if n := len(s.ring); n > 0 && u.Book.Sequence < s.ring[n-1].Book.Sequence {
		last := s.ring[n-1].Book.Sequence
		s.mu.Unlock()
		s.logger.Warn("dropping update with decreasing sequence",
			"sequence", u.Book.Sequence,
			"last", last,
		)
		return
	}
	s.pendingTrades = append(s.pendingTrades, u.Trades...)
	if len(s.ring) == s.cacheSize {
		copy(s.ring, s.ring[1:])
		s.ring = s.ring[:s.cacheSize-1]
	}
	s.ring = append(s.ring, u)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Fetch blocks until an unseen update exists, then returns the latest book
// with the entire trade history accumulated since the previous fetch. The
// accumulator and signal are cleared.
func (s *Subscriber) Fetch(ctx context.Context) (md.Update, error) {
	select {
	case <-ctx.Done():
		return md.Update{}, ctx.Err()
	case <-s.signal:
		return s.compose(), nil
	}
}

// FetchNowait returns the composed update if one is pending, or ErrNoData.
func (s *Subscriber) FetchNowait() (md.Update, error) {
	select {
	case <-s.signal:
		return s.compose(), nil
	default:
		return md.Update{}, ErrNoData
	}
}

// Latest returns the most recent update without consuming the signal or the
// trade accumulator.
func (s *Subscriber) Latest() (md.Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) == 0 {
		return md.Update{}, false
	}
	return s.ring[len(s.ring)-1], true
}

func (s *Subscriber) compose() md.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := s.ring[len(s.ring)-1]
	trades := s.pendingTrades
	s.pendingTrades = nil
	return md.ReplaceTrades(latest, trades)
}
