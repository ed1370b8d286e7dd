package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"gdax-feed/internal/book"
	"gdax-feed/pkg/md"
)

const (
	snapshotTimeout = 15 * time.Second
	bookLevel       = "3" // full order-level depth
	// Public REST limit; each recovery handler (one per product) paces its
	// own snapshot fetches with its own bucket.
	snapshotReqsPerSec = 3.0
)

// snapshotResponse is the venue's level-3 book: each row is
// [price, size, order_id].
type snapshotResponse struct {
	Sequence uint64      `json:"sequence"`
	Bids     [][3]string `json:"bids"`
	Asks     [][3]string `json:"asks"`
}

// RecoveryHandler fetches REST book snapshots and buffers live messages that
// arrive while a fetch is in flight, replaying the ones that post-date the
// snapshot. The gateway holds one instance per product; its buffer state is reset
// between attempts via DropBuffered.
type RecoveryHandler struct {
	http     *resty.Client
	rl       *TokenBucket
	buffered []Message
	sequence uint64 // sequence of the last fetched snapshot
	logger   *slog.Logger
}

// NewRecoveryHandler creates a handler fetching from the given REST base URL
// (production or sandbox — the caller decides).
func NewRecoveryHandler(baseURL string, logger *slog.Logger) *RecoveryHandler {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(snapshotTimeout).
		SetHeader("Accept", "application/json")

	return &RecoveryHandler{
		http:   httpClient,
		rl:     NewTokenBucket(snapshotReqsPerSec, snapshotReqsPerSec),
		logger: logger.With("component", "recovery"),
	}
}

// FetchSnapshot GETs the full-depth book for a product and builds an
// order-based book from it, one order per listed row. Returns the snapshot
// sequence and the book.
func (r *RecoveryHandler) FetchSnapshot(ctx context.Context, productID string) (uint64, *book.OrderBasedBook, error) {
	if err := r.rl.Wait(ctx); err != nil {
		return 0, nil, err
	}

	var result snapshotResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetPathParam("product", productID).
		SetQueryParam("level", bookLevel).
		SetResult(&result).
		Get("/products/{product}/book")
	if err != nil {
		return 0, nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, nil, fmt.Errorf("fetch snapshot: status %d: %s", resp.StatusCode(), resp.String())
	}

	b, err := parseSnapshot(result)
	if err != nil {
		return 0, nil, err
	}
	r.sequence = result.Sequence
	r.logger.Info("snapshot fetched",
		"product", productID,
		"sequence", result.Sequence,
		"bids", len(result.Bids),
		"asks", len(result.Asks),
	)
	return result.Sequence, b, nil
}

func parseSnapshot(data snapshotResponse) (*book.OrderBasedBook, error) {
	b := book.New()
	addSide := func(side md.Side, rows [][3]string) error {
		for _, row := range rows {
			price, err := md.ParsePrice(row[0])
			if err != nil {
				return fmt.Errorf("snapshot row: %w", err)
			}
			qty, err := md.ParseQty(row[1])
			if err != nil {
				return fmt.Errorf("snapshot row: %w", err)
			}
			b.AddOrder(side, row[2], price, qty)
		}
		return nil
	}
	if err := addSide(md.Bid, data.Bids); err != nil {
		return nil, err
	}
	if err := addSide(md.Ask, data.Asks); err != nil {
		return nil, err
	}
	return b, nil
}

// Buffer stores a live message that arrived during recovery.
func (r *RecoveryHandler) Buffer(m Message) {
	r.buffered = append(r.buffered, m)
}

// DropBuffered discards accumulated messages; called when a nested gap
// restarts recovery.
func (r *RecoveryHandler) DropBuffered() {
	r.buffered = nil
}

// Replay feeds buffered messages, in arrival order, through apply — skipping
// those at or below the snapshot sequence, which the snapshot already
// reflects. The buffer is drained.
func (r *RecoveryHandler) Replay(apply func(Message)) {
	for _, m := range r.buffered {
		if m.Sequence > r.sequence {
			apply(m)
		}
	}
	r.buffered = nil
}

// SnapshotSequence returns the sequence of the last fetched snapshot.
func (r *RecoveryHandler) SnapshotSequence() uint64 { return r.sequence }
