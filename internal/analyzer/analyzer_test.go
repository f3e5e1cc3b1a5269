package analyzer

import (
	"math"
	"testing"

	"p2pwatcher/internal/aggregate"
)

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestStrategyPairFromTwoBuckets(t *testing.T) {
	buckets := []aggregate.HourBucket{
		{Hour: 9, AvgBuyPrice: 27.0, Count: 5},
		{Hour: 20, AvgSellPrice: 27.8, Count: 4},
	}

	res := Analyze(buckets)
	if len(res.Strategies) != 1 {
		t.Fatalf("expected one strategy, got %+v", res.Strategies)
	}
	s := res.Strategies[0]
	if s.BuyHour != 9 || s.SellHour != 20 {
		t.Fatalf("unexpected pair %d->%d", s.BuyHour, s.SellHour)
	}
	if !near(s.Profit, 0.8, 1e-9) {
		t.Fatalf("expected profit 0.8, got %v", s.Profit)
	}
	if !near(s.ProfitPercent, 2.96, 0.01) {
		t.Fatalf("expected ~2.96%%, got %v", s.ProfitPercent)
	}
}

func TestStrategyRequiresTwoSamplesPerHour(t *testing.T) {
	for _, buckets := range [][]aggregate.HourBucket{
		{{Hour: 9, AvgBuyPrice: 27.0, Count: 1}, {Hour: 20, AvgSellPrice: 27.8, Count: 4}},
		{{Hour: 9, AvgBuyPrice: 27.0, Count: 5}, {Hour: 20, AvgSellPrice: 27.8, Count: 1}},
	} {
		if got := Analyze(buckets).Strategies; len(got) != 0 {
			t.Fatalf("single-sample hour must be excluded, got %+v", got)
		}
	}
}

func TestStrategiesRankedAndCapped(t *testing.T) {
	var buckets []aggregate.HourBucket
	for h := 0; h < 8; h++ {
		buckets = append(buckets, aggregate.HourBucket{
			Hour:         h,
			Count:        3,
			AvgBuyPrice:  40 + float64(h)*0.1,
			AvgSellPrice: 40.5 + float64(h)*0.1,
		})
	}

	got := Strategies(Eligible(buckets), TopStrategies)
	if len(got) != TopStrategies {
		t.Fatalf("expected %d strategies, got %d", TopStrategies, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ProfitPercent > got[i-1].ProfitPercent {
			t.Fatalf("strategies not sorted at %d", i)
		}
	}
	if got[0].BuyHour != 0 || got[0].SellHour != 7 {
		t.Fatalf("expected best pair 0->7, got %d->%d", got[0].BuyHour, got[0].SellHour)
	}
	for _, s := range got {
		if s.BuyHour == s.SellHour || s.Profit <= 0 {
			t.Fatalf("invalid strategy %+v", s)
		}
	}
}

func TestStrategiesSkipZeroBuyAverage(t *testing.T) {
	buckets := []aggregate.HourBucket{
		{Hour: 1, Count: 2, AvgBuyPrice: 0, AvgSellPrice: 41},
		{Hour: 2, Count: 2, AvgBuyPrice: 40, AvgSellPrice: 41},
	}
	for _, s := range Strategies(buckets, 0) {
		if s.BuyHour == 1 {
			t.Fatalf("zero buy average must not produce a strategy: %+v", s)
		}
	}
}

func TestExtremalHours(t *testing.T) {
	buckets := []aggregate.HourBucket{
		{Hour: 1, Count: 2, AvgBuyPrice: 41.0, AvgSellPrice: 41.5, AvgSpreadPercent: 1.2},
		{Hour: 2, Count: 2, AvgBuyPrice: 40.5, AvgSellPrice: 41.9, AvgSpreadPercent: 3.4},
		{Hour: 3, Count: 2, AvgBuyPrice: 40.5, AvgSellPrice: 41.1, AvgSpreadPercent: 1.5},
		{Hour: 4, Count: 2, AvgBuyPrice: 40.8, AvgSellPrice: 41.9, AvgSpreadPercent: 2.7},
		{Hour: 5, Count: 1, AvgBuyPrice: 10.0, AvgSellPrice: 99.0, AvgSpreadPercent: 99},
	}

	res := Analyze(buckets)

	assertHours(t, "cheapest", res.CheapestBuyHours, 2, 3, 4)
	assertHours(t, "priciest", res.PriciestSellHours, 2, 4, 1)
	assertHours(t, "spread", res.WidestSpreadHours, 2, 4, 3)
}

func assertHours(t *testing.T, name string, got []aggregate.HourBucket, want ...int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d hours, got %d", name, len(want), len(got))
	}
	for i, h := range want {
		if got[i].Hour != h {
			t.Fatalf("%s[%d]: expected hour %d, got %d", name, i, h, got[i].Hour)
		}
	}
}

func TestConfidenceWarnings(t *testing.T) {
	res := Analyze([]aggregate.HourBucket{{Hour: 3, Count: 10, AvgBuyPrice: 41}})
	if !res.Confidence.Low || len(res.Confidence.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %+v", res.Confidence)
	}

	var full []aggregate.HourBucket
	for h := 0; h < 24; h++ {
		full = append(full, aggregate.HourBucket{Hour: h, Count: 3, AvgBuyPrice: 41, AvgSellPrice: 41.2})
	}
	res = Analyze(full)
	if res.Confidence.Low {
		t.Fatalf("full day should be confident, got %+v", res.Confidence)
	}
	if res.Confidence.TotalSamples != 72 || res.Confidence.HoursWithData != 24 {
		t.Fatalf("unexpected totals %+v", res.Confidence)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	res := Analyze(nil)
	if !res.Confidence.Low || !res.TimeOfDay.Insufficient {
		t.Fatalf("empty snapshot should be low confidence and insufficient: %+v", res)
	}
	if len(res.Strategies) != 0 {
		t.Fatal("no strategies expected")
	}
}

func TestDispersion(t *testing.T) {
	stable := Analyze([]aggregate.HourBucket{
		{Hour: 1, Count: 1, AvgBuyPrice: 41.0},
		{Hour: 2, Count: 1, AvgBuyPrice: 41.3},
	})
	if !stable.Dispersion.Stable {
		t.Fatalf("range 0.3 should be stable: %+v", stable.Dispersion)
	}

	spread := Analyze([]aggregate.HourBucket{
		{Hour: 1, Count: 1, AvgBuyPrice: 41.0},
		{Hour: 2, Count: 1, AvgBuyPrice: 42.0},
	})
	if spread.Dispersion.Stable || !near(spread.Dispersion.BuyPriceRange, 1.0, 1e-9) {
		t.Fatalf("range 1.0 should not be stable: %+v", spread.Dispersion)
	}
}
