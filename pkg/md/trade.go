package md

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a single match on the venue. Aggressor is the taker side; the
// resting order that was hit sat on the opposite side. Sequence is the venue
// sequence of the match message, which cross-references the trade against
// book snapshots (see Update.TradesBeforeBook).
type Trade struct {
	Aggressor    Side            `json:"aggressor"`
	Price        decimal.Decimal `json:"price"`
	Qty          decimal.Decimal `json:"qty"`
	Sequence     uint64          `json:"sequence"`
	MakerOrderID string          `json:"maker_order_id,omitempty"`
	TakerOrderID string          `json:"taker_order_id,omitempty"`
	Time         time.Time       `json:"-"`
}
