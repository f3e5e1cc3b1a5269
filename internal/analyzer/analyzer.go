// Package analyzer ranks hours and hour pairs from an hourly snapshot. It is
// descriptive only: nothing here places orders or predicts prices.
package analyzer

import (
	"fmt"
	"sort"

	"p2pwatcher/internal/aggregate"
)

const (
	// MinBucketCount excludes single-sample hours from every ranking.
	MinBucketCount = 2
	// TopHours is the length of each extremal-hours list.
	TopHours = 3
	// TopStrategies caps the strategy list.
	TopStrategies = 5
	// MinHoursWithData and MinTotalSamples gate the confidence warnings.
	MinHoursWithData = 12
	MinTotalSamples  = 50
	// StableBuyRange is the hourly average buy price range under which
	// prices are reported as stable.
	StableBuyRange = 0.5
)

// Strategy is a hypothetical buy-in-one-hour, sell-in-another pairing.
type Strategy struct {
	BuyHour       int     `json:"buyHour"`
	SellHour      int     `json:"sellHour"`
	BuyPrice      float64 `json:"buyPrice"`
	SellPrice     float64 `json:"sellPrice"`
	Profit        float64 `json:"profit"`
	ProfitPercent float64 `json:"profitPercent"`
}

// Confidence flags reports built from thin data.
type Confidence struct {
	Low           bool     `json:"low"`
	HoursWithData int      `json:"hoursWithData"`
	TotalSamples  uint64   `json:"totalSamples"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Dispersion summarises how far hourly average buy prices are apart.
type Dispersion struct {
	BuyPriceRange float64 `json:"buyPriceRange"`
	Stable        bool    `json:"stable"`
}

// Result is the full analysis of one snapshot.
type Result struct {
	CheapestBuyHours  []aggregate.HourBucket `json:"cheapestHours"`
	PriciestSellHours []aggregate.HourBucket `json:"expensiveHours"`
	WidestSpreadHours []aggregate.HourBucket `json:"highSpreadHours"`
	Strategies        []Strategy             `json:"strategies"`
	TimeOfDay         TimeOfDay              `json:"timeOfDay"`
	Confidence        Confidence             `json:"confidence"`
	Dispersion        Dispersion             `json:"dispersion"`
}

// Analyze computes every section of the report. It never fails; thin data
// is reported through Confidence.
func Analyze(buckets []aggregate.HourBucket) Result {
	eligible := Eligible(buckets)

	return Result{
		CheapestBuyHours: topHours(eligible, func(a, b aggregate.HourBucket) bool {
			return a.AvgBuyPrice < b.AvgBuyPrice
		}),
		PriciestSellHours: topHours(eligible, func(a, b aggregate.HourBucket) bool {
			return a.AvgSellPrice > b.AvgSellPrice
		}),
		WidestSpreadHours: topHours(eligible, func(a, b aggregate.HourBucket) bool {
			return a.AvgSpreadPercent > b.AvgSpreadPercent
		}),
		Strategies: Strategies(eligible, TopStrategies),
		TimeOfDay:  CompareTimeOfDay(buckets),
		Confidence: assessConfidence(buckets),
		Dispersion: measureDispersion(buckets),
	}
}

// Eligible keeps buckets with at least MinBucketCount samples, in hour order.
func Eligible(buckets []aggregate.HourBucket) []aggregate.HourBucket {
	out := make([]aggregate.HourBucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Count >= MinBucketCount {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func topHours(eligible []aggregate.HourBucket, better func(a, b aggregate.HourBucket) bool) []aggregate.HourBucket {
	ranked := append([]aggregate.HourBucket(nil), eligible...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if better(ranked[i], ranked[j]) {
			return true
		}
		if better(ranked[j], ranked[i]) {
			return false
		}
		return ranked[i].Hour < ranked[j].Hour
	})
	if len(ranked) > TopHours {
		ranked = ranked[:TopHours]
	}
	return ranked
}

// Strategies pairs every eligible buy hour with every other eligible sell
// hour, keeps positive profits and returns the best limit by profit percent.
// Pairs whose buy-hour average is not positive have no defined percent and
// are skipped.
func Strategies(eligible []aggregate.HourBucket, limit int) []Strategy {
	out := make([]Strategy, 0)
	for _, buy := range eligible {
		if buy.AvgBuyPrice <= 0 {
			continue
		}
		for _, sell := range eligible {
			if sell.Hour == buy.Hour {
				continue
			}
			profit := sell.AvgSellPrice - buy.AvgBuyPrice
			if profit <= 0 {
				continue
			}
			out = append(out, Strategy{
				BuyHour:       buy.Hour,
				SellHour:      sell.Hour,
				BuyPrice:      buy.AvgBuyPrice,
				SellPrice:     sell.AvgSellPrice,
				Profit:        profit,
				ProfitPercent: profit / buy.AvgBuyPrice * 100,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProfitPercent != out[j].ProfitPercent {
			return out[i].ProfitPercent > out[j].ProfitPercent
		}
		if out[i].BuyHour != out[j].BuyHour {
			return out[i].BuyHour < out[j].BuyHour
		}
		return out[i].SellHour < out[j].SellHour
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func assessConfidence(buckets []aggregate.HourBucket) Confidence {
	c := Confidence{TotalSamples: aggregate.TotalCount(buckets)}
	for _, b := range buckets {
		if b.Count > 0 {
			c.HoursWithData++
		}
	}
	if c.HoursWithData < MinHoursWithData {
		c.Warnings = append(c.Warnings, fmt.Sprintf("only %d of 24 hours have data; collect at least a full day", c.HoursWithData))
	}
	if c.TotalSamples < MinTotalSamples {
		c.Warnings = append(c.Warnings, fmt.Sprintf("only %d samples collected; results are not statistically meaningful", c.TotalSamples))
	}
	c.Low = len(c.Warnings) > 0
	return c
}

func measureDispersion(buckets []aggregate.HourBucket) Dispersion {
	var (
		lo, hi float64
		seen   bool
	)
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		if !seen {
			lo, hi, seen = b.AvgBuyPrice, b.AvgBuyPrice, true
			continue
		}
		if b.AvgBuyPrice < lo {
			lo = b.AvgBuyPrice
		}
		if b.AvgBuyPrice > hi {
			hi = b.AvgBuyPrice
		}
	}
	r := hi - lo
	return Dispersion{BuyPriceRange: r, Stable: r < StableBuyRange}
}
