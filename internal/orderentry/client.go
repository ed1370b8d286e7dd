package orderentry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gdax-feed/pkg/md"
)

// Client is the private REST client. The base URL selects production or
// sandbox; nothing here defaults it.
type Client struct {
	http   *resty.Client
	auth   *Auth
	logger *slog.Logger
}

// NewClient creates a client against baseURL with retry on 5xx.
func NewClient(baseURL string, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		logger: logger.With("component", "orderentry"),
	}
}

// SubmitOrder places a limit order and returns the venue's view of it.
// Rejections surface as *Nack.
func (c *Client) SubmitOrder(ctx context.Context, instrument md.Instrument, side md.Side, price, size decimal.Decimal, opts SubmitOptions) (*Order, error) {
	req := orderRequest{
		ClientOID: uuid.NewString(),
		ProductID: instrument.Symbol(),
		Side:      wireSide(side),
		Price:     price.String(),
		Size:      size.String(),
		Type:      "limit",
	}
	if opts.IOC {
		req.TimeInForce = "IOC"
	} else if opts.PostOnly {
		req.PostOnly = true
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodPost, "/orders", string(body))).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &Nack{Op: "submit", Reason: nackReason(resp)}
	}
	if result.Status == "rejected" {
		return nil, &Nack{Op: "submit", Reason: result.RejectReason}
	}

	filled := decimal.Zero
	if result.FilledSize != "" {
		if filled, err = md.ParseQty(result.FilledSize); err != nil {
			return nil, err
		}
	}
	order := &Order{
		ID:          result.ID,
		ClientOID:   req.ClientOID,
		Instrument:  instrument,
		Side:        side,
		Price:       price,
		Size:        size,
		FilledSize:  filled,
		Status:      result.Status,
		TimeInForce: result.TimeInForce,
		PostOnly:    result.PostOnly,
	}
	c.logger.Info("order submitted",
		"order_id", order.ID,
		"side", side.String(),
		"price", price.String(),
		"size", size.String(),
	)
	return order, nil
}

// CancelOrder cancels one order by venue id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := "/orders/" + orderID
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodDelete, path, "")).
		Delete(path)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return &Nack{Op: "cancel", Reason: nackReason(resp)}
	}
	c.logger.Info("order cancelled", "order_id", orderID)
	return nil
}

// CancelAll cancels every open order, returning the cancelled ids.
func (c *Client) CancelAll(ctx context.Context) ([]string, error) {
	var cancelled []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodDelete, "/orders", "")).
		SetResult(&cancelled).
		Delete("/orders")
	if err != nil {
		return nil, fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &Nack{Op: "cancel-all", Reason: nackReason(resp)}
	}
	c.logger.Warn("all orders cancelled", "count", len(cancelled))
	return cancelled, nil
}

// ListOrders returns open orders.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var results []orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodGet, "/orders", "")).
		SetResult(&results).
		Get("/orders")
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	orders := make([]Order, 0, len(results))
	for _, r := range results {
		o, err := parseOrder(r)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// GetFills returns executions, optionally filtered to one order id.
func (c *Client) GetFills(ctx context.Context, orderID string) ([]Fill, error) {
	path := "/fills"
	if orderID != "" {
		path += "?order_id=" + orderID
	}
	var results []fillResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodGet, path, "")).
		SetResult(&results).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get fills: status %d: %s", resp.StatusCode(), resp.String())
	}

	fills := make([]Fill, 0, len(results))
	for _, r := range results {
		f, err := parseFill(r)
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, nil
}

// GetBalances returns per-currency available and held amounts.
func (c *Client) GetBalances(ctx context.Context) (map[string]Balance, error) {
	var results []accountResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.auth.Headers(http.MethodGet, "/accounts", "")).
		SetResult(&results).
		Get("/accounts")
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get balances: status %d: %s", resp.StatusCode(), resp.String())
	}

	balances := make(map[string]Balance, len(results))
	for _, r := range results {
		available, err := md.ParseQty(r.Available)
		if err != nil {
			return nil, err
		}
		hold, err := md.ParseQty(r.Hold)
		if err != nil {
			return nil, err
		}
		balances[strings.ToUpper(r.Currency)] = Balance{Available: available, Hold: hold}
	}
	return balances, nil
}

func parseOrder(r orderResponse) (Order, error) {
	side, err := md.ParseSide(r.Side)
	if err != nil {
		return Order{}, err
	}
	price, err := md.ParsePrice(r.Price)
	if err != nil {
		return Order{}, err
	}
	size, err := md.ParseQty(r.Size)
	if err != nil {
		return Order{}, err
	}
	filled := decimal.Zero
	if r.FilledSize != "" {
		if filled, err = md.ParseQty(r.FilledSize); err != nil {
			return Order{}, err
		}
	}
	return Order{
		ID:          r.ID,
		Side:        side,
		Price:       price,
		Size:        size,
		FilledSize:  filled,
		Status:      r.Status,
		TimeInForce: r.TimeInForce,
		PostOnly:    r.PostOnly,
	}, nil
}

func parseFill(r fillResponse) (Fill, error) {
	side, err := md.ParseSide(r.Side)
	if err != nil {
		return Fill{}, err
	}
	price, err := md.ParsePrice(r.Price)
	if err != nil {
		return Fill{}, err
	}
	size, err := md.ParseQty(r.Size)
	if err != nil {
		return Fill{}, err
	}
	fee := decimal.Zero
	if r.Fee != "" {
		if fee, err = decimal.NewFromString(r.Fee); err != nil {
			return Fill{}, fmt.Errorf("parse fee %q: %w", r.Fee, err)
		}
	}
	return Fill{
		TradeID: r.TradeID,
		OrderID: r.OrderID,
		Side:    side,
		Price:   price,
		Size:    size,
		Fee:     fee,
		Settled: r.Settled,
	}, nil
}

func wireSide(s md.Side) string {
	if s == md.Bid {
		return "buy"
	}
	return "sell"
}

func nackReason(resp *resty.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fmt.Sprintf("status %d", resp.StatusCode())
}
