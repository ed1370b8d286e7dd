package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdax-feed/pkg/md"
)

func TestParseOpenMessage(t *testing.T) {
	t.Parallel()
	m, err := ParseMessage([]byte(`{
		"type":"open","sequence":10,"time":"2019-03-07T21:32:50.100000Z",
		"product_id":"BTC-USD","side":"buy","order_id":"A",
		"price":"100.00","remaining_size":"1.5"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgOpen, m.Type)
	assert.Equal(t, uint64(10), m.Sequence)
	assert.Equal(t, "BTC-USD", m.Product)
	assert.Equal(t, md.Bid, m.Side)
	assert.Equal(t, "A", m.OrderID)
	assert.True(t, m.HasPrice)
	assert.True(t, m.Price.Equal(md.MustDecimal("100.00")))
	assert.True(t, m.Qty.Equal(md.MustDecimal("1.5")))
	assert.Equal(t, time.Date(2019, 3, 7, 21, 32, 50, 100_000_000, time.UTC), m.Time.UTC())
}

func TestParseMatchMessage(t *testing.T) {
	t.Parallel()
	m, err := ParseMessage([]byte(`{
		"type":"match","sequence":11,"side":"buy",
		"maker_order_id":"A","taker_order_id":"T",
		"price":"100.00","size":"0.5"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgMatch, m.Type)
	assert.Equal(t, md.Bid, m.Side)
	assert.Equal(t, "A", m.MakerOrderID)
	assert.Equal(t, "T", m.TakerOrderID)
	assert.True(t, m.Qty.Equal(md.MustDecimal("0.5")))
}

func TestParseDoneWithoutPrice(t *testing.T) {
	t.Parallel()
	m, err := ParseMessage([]byte(`{"type":"done","sequence":12,"side":"sell","order_id":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgDone, m.Type)
	assert.False(t, m.HasPrice)
}

func TestParseChangeFundsForm(t *testing.T) {
	t.Parallel()
	m, err := ParseMessage([]byte(`{
		"type":"change","sequence":13,"side":"buy","order_id":"A",
		"new_funds":"500.00"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgChange, m.Type)
	assert.True(t, m.FundsChange)
}

func TestParseChangeSizeForm(t *testing.T) {
	t.Parallel()
	m, err := ParseMessage([]byte(`{
		"type":"change","sequence":13,"side":"buy","order_id":"A",
		"price":"100.00","new_size":"3"}`))
	require.NoError(t, err)
	assert.False(t, m.FundsChange)
	assert.True(t, m.Qty.Equal(md.MustDecimal("3")))
}

func TestParseReceived(t *testing.T) {
	t.Parallel()
	m, err := ParseMessage([]byte(`{"type":"received","sequence":9,"order_id":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgReceived, m.Type)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"malformed json":   `{"type":"open",`,
		"unknown type":     `{"type":"activate","sequence":5}`,
		"missing sequence": `{"type":"open","side":"buy","order_id":"A","price":"1","remaining_size":"1"}`,
		"open sans price":  `{"type":"open","sequence":5,"side":"buy","order_id":"A","remaining_size":"1"}`,
		"open sans size":   `{"type":"open","sequence":5,"side":"buy","order_id":"A","price":"1"}`,
		"bad side":         `{"type":"open","sequence":5,"side":"hold","order_id":"A","price":"1","remaining_size":"1"}`,
		"negative price":   `{"type":"open","sequence":5,"side":"buy","order_id":"A","price":"-1","remaining_size":"1"}`,
		"unparseable time": `{"type":"open","sequence":5,"time":"yesterday","side":"buy","order_id":"A","price":"1","remaining_size":"1"}`,
		"match sans price": `{"type":"match","sequence":5,"side":"buy","maker_order_id":"A","size":"1"}`,
	}
	for name, raw := range cases {
		_, err := ParseMessage([]byte(raw))
		assert.Error(t, err, name)
	}
}
