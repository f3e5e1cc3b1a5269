package analyzer

import (
	"testing"

	"p2pwatcher/internal/aggregate"
)

func TestCompareTimeOfDay(t *testing.T) {
	buckets := []aggregate.HourBucket{
		{Hour: 7, Count: 4, AvgBuyPrice: 40.0, AvgSellPrice: 40.6},
		{Hour: 9, Count: 4, AvgBuyPrice: 40.2, AvgSellPrice: 40.8},
		{Hour: 19, Count: 3, AvgBuyPrice: 40.9, AvgSellPrice: 41.5},
		{Hour: 22, Count: 1, AvgBuyPrice: 10.0, AvgSellPrice: 10.0},
		{Hour: 2, Count: 2, AvgBuyPrice: 40.4, AvgSellPrice: 40.9},
	}

	got := CompareTimeOfDay(buckets)
	if got.Insufficient {
		t.Fatal("morning and evening both have data")
	}
	if !near(got.BuyDifference, 0.8, 1e-9) {
		t.Fatalf("expected buy difference 0.8, got %v", got.BuyDifference)
	}
	if !near(got.SellDifference, 0.8, 1e-9) {
		t.Fatalf("expected sell difference 0.8, got %v", got.SellDifference)
	}
	if !got.MorningCheaper || !got.EveningPricier {
		t.Fatalf("unexpected directions %+v", got)
	}
	if len(got.Periods) != 4 {
		t.Fatalf("expected four periods, got %d", len(got.Periods))
	}
	if got.Periods[1].Hours != 0 || got.Periods[3].Hours != 1 {
		t.Fatalf("unexpected period hours %+v", got.Periods)
	}
}

func TestCompareTimeOfDayInsufficient(t *testing.T) {
	got := CompareTimeOfDay([]aggregate.HourBucket{
		{Hour: 8, Count: 5, AvgBuyPrice: 40},
		{Hour: 20, Count: 1, AvgBuyPrice: 41},
	})
	if !got.Insufficient {
		t.Fatal("single-sample evening hour must not count")
	}
}

func TestPeriodContains(t *testing.T) {
	if !Night.Contains(0) || !Night.Contains(5) || Night.Contains(6) {
		t.Fatal("night bounds are 0..5")
	}
	if !Evening.Contains(23) || Evening.Contains(17) {
		t.Fatal("evening bounds are 18..23")
	}
}
