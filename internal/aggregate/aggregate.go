// Package aggregate maintains running per-hour statistics over every sample
// ever accepted. Buckets are never corrected when history evicts samples, so
// they can describe more data than the retained window holds.
package aggregate

import (
	"sync"

	"p2pwatcher/internal/storage"
)

// Hours is the number of hour-of-day buckets.
const Hours = 24

// HourBucket is the running aggregate for one hour of the day.
type HourBucket struct {
	Hour             int     `json:"hour"`
	Count            uint64  `json:"count"`
	AvgBuyPrice      float64 `json:"avgBuyPrice"`
	AvgSellPrice     float64 `json:"avgSellPrice"`
	AvgSpreadPercent float64 `json:"avgSpread"`
	MinBuyPrice      float64 `json:"minBuyPrice"`
	MaxSellPrice     float64 `json:"maxSellPrice"`
}

// Aggregator owns the 24 lazily created buckets.
type Aggregator struct {
	mu      sync.RWMutex
	buckets [Hours]*HourBucket
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Update folds one observation into the hour's bucket. Out-of-range hours
// are ignored.
func (a *Aggregator) Update(hour int, buy, sell, spreadPercent float64) {
	if hour < 0 || hour >= Hours {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b := a.buckets[hour]
	if b == nil {
		a.buckets[hour] = &HourBucket{
			Hour:             hour,
			Count:            1,
			AvgBuyPrice:      buy,
			AvgSellPrice:     sell,
			AvgSpreadPercent: spreadPercent,
			MinBuyPrice:      buy,
			MaxSellPrice:     sell,
		}
		return
	}

	n := float64(b.Count)
	b.AvgBuyPrice = (b.AvgBuyPrice*n + buy) / (n + 1)
	b.AvgSellPrice = (b.AvgSellPrice*n + sell) / (n + 1)
	b.AvgSpreadPercent = (b.AvgSpreadPercent*n + spreadPercent) / (n + 1)
	b.Count++
	if buy < b.MinBuyPrice {
		b.MinBuyPrice = buy
	}
	if sell > b.MaxSellPrice {
		b.MaxSellPrice = sell
	}
}

// Add folds a stored sample.
func (a *Aggregator) Add(sample storage.Sample) {
	a.Update(
		sample.Hour,
		sample.BuyPrice.InexactFloat64(),
		sample.SellPrice.InexactFloat64(),
		sample.SpreadPercent.InexactFloat64(),
	)
}

// Fold adds samples in order.
func (a *Aggregator) Fold(samples []storage.Sample) {
	for _, sample := range samples {
		a.Add(sample)
	}
}

// Snapshot copies the populated buckets, sorted by hour ascending.
func (a *Aggregator) Snapshot() []HourBucket {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]HourBucket, 0, Hours)
	for _, b := range a.buckets {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

// Bucket returns a copy of one hour's bucket.
func (a *Aggregator) Bucket(hour int) (HourBucket, bool) {
	if hour < 0 || hour >= Hours {
		return HourBucket{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if b := a.buckets[hour]; b != nil {
		return *b, true
	}
	return HourBucket{}, false
}

// TotalCount sums counts across buckets.
func TotalCount(buckets []HourBucket) uint64 {
	var total uint64
	for _, b := range buckets {
		total += b.Count
	}
	return total
}

// FromSamples builds a snapshot without retaining an aggregator.
func FromSamples(samples []storage.Sample) []HourBucket {
	agg := New()
	agg.Fold(samples)
	return agg.Snapshot()
}
