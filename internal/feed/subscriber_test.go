package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdax-feed/pkg/md"
)

func newTestSubscriber(t *testing.T, opts ...SubscriberOption) *Subscriber {
	t.Helper()
	gw := NewGateway("ws://unused", "http://unused", nil, testLogger())
	return NewSubscriber(gw, testInstrument(), testLogger(), opts...)
}

func bookAt(seq uint64) md.BookSnapshot {
	return md.BookSnapshot{Sequence: seq}
}

func tradeAt(seq uint64) md.Trade {
	return md.Trade{
		Aggressor: md.Bid,
		Price:     md.MustDecimal("100"),
		Qty:       md.MustDecimal("1"),
		Sequence:  seq,
	}
}

func TestSubscriberFetchNowaitEmpty(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)
	_, err := s.FetchNowait()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSubscriberFetchReturnsLatest(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)
	s.OnUpdate(md.Update{Book: bookAt(10), Status: md.StatusOK})
	s.OnUpdate(md.Update{Book: bookAt(11), Status: md.StatusOK})

	u, err := s.FetchNowait()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), u.Book.Sequence)

	// Signal consumed; nothing new pending.
	_, err = s.FetchNowait()
	assert.ErrorIs(t, err, ErrNoData)
}

// Trades survive conflation: the multiset of trades received over successive
// fetches equals the multiset delivered, however updates were batched.
func TestSubscriberTradeConservation(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)

	delivered := 0
	fetchAll := func() []md.Trade {
		u, err := s.FetchNowait()
		require.NoError(t, err)
		return u.Trades
	}

	var received []md.Trade

	s.OnUpdate(md.Update{Book: bookAt(10), Trades: []md.Trade{tradeAt(10)}})
	delivered++
	s.OnUpdate(md.Update{Book: bookAt(12), Trades: []md.Trade{tradeAt(11), tradeAt(12)}})
	delivered += 2
	s.OnUpdate(md.Update{Book: bookAt(13), Trades: []md.Trade{tradeAt(13)}})
	delivered++
	received = append(received, fetchAll()...)

	s.OnUpdate(md.Update{Book: bookAt(14), Trades: []md.Trade{tradeAt(14)}})
	delivered++
	received = append(received, fetchAll()...)

	require.Len(t, received, delivered)
	// Ordered by delivery.
	for i := 1; i < len(received); i++ {
		assert.GreaterOrEqual(t, received[i].Sequence, received[i-1].Sequence)
	}
}

// An equal sequence means "no new book, new trades only" and is accepted.
func TestSubscriberEqualSequenceAccepted(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)
	s.OnUpdate(md.Update{Book: bookAt(10)})
	s.OnUpdate(md.Update{Book: bookAt(10), Trades: []md.Trade{tradeAt(10)}})

	u, err := s.FetchNowait()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), u.Book.Sequence)
	assert.Len(t, u.Trades, 1)
}

func TestSubscriberDropsDecreasingSequence(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)
	s.OnUpdate(md.Update{Book: bookAt(12)})
	s.OnUpdate(md.Update{Book: bookAt(11), Trades: []md.Trade{tradeAt(11)}})

	u, err := s.FetchNowait()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), u.Book.Sequence)
	// The stale update's trades were dropped with it.
	assert.Empty(t, u.Trades)
}

func TestSubscriberSequenceMonotone(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)
	seqs := []uint64{5, 7, 7, 6, 9, 8, 12}
	var fetched []uint64
	for _, seq := range seqs {
		s.OnUpdate(md.Update{Book: bookAt(seq)})
		if u, err := s.FetchNowait(); err == nil {
			fetched = append(fetched, u.Book.Sequence)
		}
	}
	for i := 1; i < len(fetched); i++ {
		assert.GreaterOrEqual(t, fetched[i], fetched[i-1])
	}
}

func TestSubscriberFetchBlocksUntilSignal(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)

	done := make(chan md.Update, 1)
	go func() {
		u, err := s.Fetch(context.Background())
		if err == nil {
			done <- u
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.OnUpdate(md.Update{Book: bookAt(42)})

	select {
	case u := <-done:
		assert.Equal(t, uint64(42), u.Book.Sequence)
	case <-time.After(time.Second):
		t.Fatal("Fetch did not wake on update")
	}
}

func TestSubscriberFetchHonoursContext(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriberLatest(t *testing.T) {
	t.Parallel()
	s := newTestSubscriber(t, WithUpdateCache(3))

	_, ok := s.Latest()
	assert.False(t, ok)

	for seq := uint64(1); seq <= 5; seq++ {
		s.OnUpdate(md.Update{Book: bookAt(seq)})
	}
	u, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), u.Book.Sequence)

	// Latest does not consume the pending fetch.
	_, err := s.FetchNowait()
	assert.NoError(t, err)
}
