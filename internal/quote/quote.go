// Package quote holds the order-book entry model and the representative
// quote selection policy.
package quote

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side identifies one half of the two-sided P2P book.
type Side int

const (
	// Buy lists offers the user can buy from.
	Buy Side = iota
	// Sell lists offers the user can sell to.
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// OrderBookEntry is one advertisement as returned by the marketplace.
// Price is invalid when the upstream value was missing or unparsable.
type OrderBookEntry struct {
	Price        decimal.NullDecimal
	Counterparty string
	NewUserOffer bool
}

// NewEntry builds an entry with a valid price.
func NewEntry(price decimal.Decimal, counterparty string, newUser bool) OrderBookEntry {
	return OrderBookEntry{
		Price:        decimal.NewNullDecimal(price),
		Counterparty: counterparty,
		NewUserOffer: newUser,
	}
}

// Quote is the representative price picked for one side.
type Quote struct {
	Price        decimal.Decimal
	Counterparty string
	// Rank is the position inside the filtered list (2 or 0).
	Rank int
}
