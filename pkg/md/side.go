// Package md is the shared market-data vocabulary: sides, instruments,
// trades, book snapshots, updates, and the data-health status. It has no
// dependencies on internal packages, so it can be imported by any layer.
// All prices and quantities are exact decimals.
package md

import "fmt"

// Side is the side of the book an order rests on: Bid or Ask.
type Side int8

const (
	Bid Side = iota
	Ask
)

// Opposite returns the other side. Bid.Opposite().Opposite() == Bid.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// ParseSide parses the venue's wire form ("buy"/"sell") as well as the
// canonical BID/ASK names used in recordings.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "BUY", "bid", "BID", "Side.BID":
		return Bid, nil
	case "sell", "SELL", "ask", "ASK", "Side.ASK":
		return Ask, nil
	}
	return Bid, fmt.Errorf("unknown side %q", s)
}

// MarshalJSON emits the canonical name so recorded trades are readable.
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts any form ParseSide accepts.
func (s *Side) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' {
		return fmt.Errorf("side must be a JSON string, got %s", data)
	}
	parsed, err := ParseSide(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
