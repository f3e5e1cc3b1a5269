package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Sample is one accepted tick: the representative buy/sell pair plus the
// derived spread fields. Samples are immutable once stored.
type Sample struct {
	Timestamp     time.Time       `json:"timestamp"`
	Hour          int             `json:"hour"`
	Weekday       time.Weekday    `json:"dayOfWeek"`
	BuyPrice      decimal.Decimal `json:"buyPrice"`
	SellPrice     decimal.Decimal `json:"sellPrice"`
	Spread        decimal.Decimal `json:"spread"`
	SpreadPercent decimal.Decimal `json:"spreadPercent"`
	BuyerName     string          `json:"buyerName"`
	SellerName    string          `json:"sellerName"`
	MinAmount     int64           `json:"minAmount"`
	Bank          string          `json:"bank,omitempty"`
}

// SampleInput carries what a tick observed before derivation.
type SampleInput struct {
	Timestamp  time.Time
	BuyPrice   decimal.Decimal
	SellPrice  decimal.Decimal
	BuyerName  string
	SellerName string
	MinAmount  int64
	Bank       string
}

// NewSample derives hour, weekday and spread fields. Hour and weekday are
// taken in loc (local time when nil). ok is false when neither side has a
// positive price.
func NewSample(in SampleInput, loc *time.Location) (Sample, bool) {
	if !in.BuyPrice.IsPositive() && !in.SellPrice.IsPositive() {
		return Sample{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	local := in.Timestamp.In(loc)

	spread := in.SellPrice.Sub(in.BuyPrice)
	spreadPct := decimal.Zero
	if in.BuyPrice.IsPositive() {
		spreadPct = spread.Div(in.BuyPrice).Mul(hundred)
	}

	return Sample{
		Timestamp:     in.Timestamp,
		Hour:          local.Hour(),
		Weekday:       local.Weekday(),
		BuyPrice:      in.BuyPrice,
		SellPrice:     in.SellPrice,
		Spread:        spread,
		SpreadPercent: spreadPct,
		BuyerName:     in.BuyerName,
		SellerName:    in.SellerName,
		MinAmount:     in.MinAmount,
		Bank:          in.Bank,
	}, true
}

// Equal compares samples field by field, decimals by value.
func (s Sample) Equal(o Sample) bool {
	return s.Timestamp.Equal(o.Timestamp) &&
		s.Hour == o.Hour &&
		s.Weekday == o.Weekday &&
		s.BuyPrice.Equal(o.BuyPrice) &&
		s.SellPrice.Equal(o.SellPrice) &&
		s.Spread.Equal(o.Spread) &&
		s.SpreadPercent.Equal(o.SpreadPercent) &&
		s.BuyerName == o.BuyerName &&
		s.SellerName == o.SellerName &&
		s.MinAmount == o.MinAmount &&
		s.Bank == o.Bank
}
