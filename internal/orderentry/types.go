package orderentry

import (
	"fmt"

	"github.com/shopspring/decimal"

	"gdax-feed/pkg/md"
)

// Order is a live (or just-submitted) order on the venue.
type Order struct {
	ID          string
	ClientOID   string
	Instrument  md.Instrument
	Side        md.Side
	Price       decimal.Decimal
	Size        decimal.Decimal
	FilledSize  decimal.Decimal
	Status      string
	TimeInForce string
	PostOnly    bool
}

// Remaining returns the unfilled quantity.
func (o Order) Remaining() decimal.Decimal {
	return o.Size.Sub(o.FilledSize)
}

// Fill is one execution against one of our orders.
type Fill struct {
	TradeID int64
	OrderID string
	Side    md.Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	Fee     decimal.Decimal
	Settled bool
}

// Balance is one currency's account state.
type Balance struct {
	Available decimal.Decimal
	Hold      decimal.Decimal
}

// SubmitOptions tune order submission.
type SubmitOptions struct {
	IOC      bool // immediate-or-cancel; remainder is discarded
	PostOnly bool // reject instead of crossing
}

// Nack is returned when the venue rejects an operation.
type Nack struct {
	Op     string // "submit", "cancel", "cancel-all"
	Reason string
}

func (n *Nack) Error() string {
	return fmt.Sprintf("%s rejected: %s", n.Op, n.Reason)
}

// wire types

type orderRequest struct {
	ClientOID   string `json:"client_oid"`
	ProductID   string `json:"product_id"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force,omitempty"`
	PostOnly    bool   `json:"post_only,omitempty"`
}

type orderResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason"`
	Message      string `json:"message"`
	FilledSize   string `json:"filled_size"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	Side         string `json:"side"`
	TimeInForce  string `json:"time_in_force"`
	PostOnly     bool   `json:"post_only"`
}

type fillResponse struct {
	TradeID int64  `json:"trade_id"`
	OrderID string `json:"order_id"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Fee     string `json:"fee"`
	Settled bool   `json:"settled"`
}

type accountResponse struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
}
