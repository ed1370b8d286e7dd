package orderentry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdax-feed/pkg/md"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	auth, err := NewAuth("key", testSecret, "pass")
	require.NoError(t, err)
	return NewClient(server.URL, auth, testLogger())
}

func btcusd() md.Instrument { return md.NewInstrument("BTC", "USD", "GDAX") }

func TestSubmitOrder(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))

		var req orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BTC-USD", req.ProductID)
		assert.Equal(t, "buy", req.Side)
		assert.Equal(t, "100.5", req.Price)
		assert.Equal(t, "limit", req.Type)
		assert.NotEmpty(t, req.ClientOID)

		json.NewEncoder(w).Encode(orderResponse{
			ID:         "venue-1",
			Status:     "open",
			FilledSize: "0.25",
		})
	})

	order, err := client.SubmitOrder(context.Background(), btcusd(), md.Bid,
		md.MustDecimal("100.5"), md.MustDecimal("2"), SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "venue-1", order.ID)
	assert.NotEmpty(t, order.ClientOID)
	assert.True(t, order.FilledSize.Equal(md.MustDecimal("0.25")))
	assert.True(t, order.Remaining().Equal(md.MustDecimal("1.75")))
}

func TestSubmitOrderRejected(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{Status: "rejected", RejectReason: "post only would cross"})
	})

	_, err := client.SubmitOrder(context.Background(), btcusd(), md.Ask,
		md.MustDecimal("100"), md.MustDecimal("1"), SubmitOptions{PostOnly: true})
	var nack *Nack
	require.ErrorAs(t, err, &nack)
	assert.Equal(t, "submit", nack.Op)
	assert.Contains(t, nack.Reason, "post only")
}

func TestSubmitOrderHTTPError(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "insufficient funds"})
	})

	_, err := client.SubmitOrder(context.Background(), btcusd(), md.Bid,
		md.MustDecimal("100"), md.MustDecimal("1"), SubmitOptions{})
	var nack *Nack
	require.ErrorAs(t, err, &nack)
	assert.Equal(t, "insufficient funds", nack.Reason)
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/orders/venue-1", r.URL.Path)
		json.NewEncoder(w).Encode([]string{"venue-1"})
	})

	assert.NoError(t, client.CancelOrder(context.Background(), "venue-1"))
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		json.NewEncoder(w).Encode([]string{"a", "b"})
	})

	cancelled, err := client.CancelAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cancelled)
}

func TestGetFills(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "order-1", r.URL.Query().Get("order_id"))
		json.NewEncoder(w).Encode([]fillResponse{{
			TradeID: 7,
			OrderID: "order-1",
			Side:    "sell",
			Price:   "101.25",
			Size:    "0.5",
			Fee:     "0.15",
			Settled: true,
		}})
	})

	fills, err := client.GetFills(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, md.Ask, fills[0].Side)
	assert.True(t, fills[0].Price.Equal(md.MustDecimal("101.25")))
	assert.True(t, fills[0].Fee.Equal(md.MustDecimal("0.15")))
	assert.True(t, fills[0].Settled)
}

func TestGetBalances(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts", r.URL.Path)
		json.NewEncoder(w).Encode([]accountResponse{
			{Currency: "usd", Available: "1000.50", Hold: "250"},
			{Currency: "BTC", Available: "2", Hold: "0"},
		})
	})

	balances, err := client.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.True(t, balances["USD"].Available.Equal(md.MustDecimal("1000.50")))
	assert.True(t, balances["USD"].Hold.Equal(md.MustDecimal("250")))
	assert.True(t, balances["BTC"].Available.Equal(md.MustDecimal("2")))
}

func TestListOrders(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]orderResponse{{
			ID:     "venue-2",
			Status: "open",
			Side:   "buy",
			Price:  "99.00",
			Size:   "3",
		}})
	})

	orders, err := client.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, md.Bid, orders[0].Side)
	assert.True(t, orders[0].Remaining().Equal(md.MustDecimal("3")))
}
