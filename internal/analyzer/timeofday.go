package analyzer

import "p2pwatcher/internal/aggregate"

// Period is a named, inclusive range of hours.
type Period struct {
	Name     string
	FromHour int
	ToHour   int
}

// Periods of the day, in report order.
var (
	Morning   = Period{Name: "morning", FromHour: 6, ToHour: 11}
	Afternoon = Period{Name: "afternoon", FromHour: 12, ToHour: 17}
	Evening   = Period{Name: "evening", FromHour: 18, ToHour: 23}
	Night     = Period{Name: "night", FromHour: 0, ToHour: 5}
)

// Contains reports whether hour falls in the period.
func (p Period) Contains(hour int) bool {
	return hour >= p.FromHour && hour <= p.ToHour
}

// PeriodSummary holds unweighted means of hourly averages in one period.
type PeriodSummary struct {
	Name         string  `json:"name"`
	FromHour     int     `json:"fromHour"`
	ToHour       int     `json:"toHour"`
	Hours        int     `json:"hours"`
	AvgBuyPrice  float64 `json:"avgBuyPrice"`
	AvgSellPrice float64 `json:"avgSellPrice"`
}

// TimeOfDay compares morning against evening prices.
type TimeOfDay struct {
	Periods      []PeriodSummary `json:"periods"`
	Insufficient bool            `json:"insufficient"`
	// BuyDifference and SellDifference are evening minus morning.
	BuyDifference  float64 `json:"buyDifference"`
	SellDifference float64 `json:"sellDifference"`
	MorningCheaper bool    `json:"morningCheaper"`
	EveningPricier bool    `json:"eveningPricier"`
}

// CompareTimeOfDay summarises the four periods over eligible buckets. When
// either morning or evening has no eligible hour the comparison is marked
// insufficient.
func CompareTimeOfDay(buckets []aggregate.HourBucket) TimeOfDay {
	eligible := Eligible(buckets)

	var out TimeOfDay
	summaries := make(map[string]PeriodSummary, 4)
	for _, p := range []Period{Morning, Afternoon, Evening, Night} {
		s := summarize(p, eligible)
		summaries[p.Name] = s
		out.Periods = append(out.Periods, s)
	}

	morning, evening := summaries[Morning.Name], summaries[Evening.Name]
	if morning.Hours == 0 || evening.Hours == 0 {
		out.Insufficient = true
		return out
	}

	out.BuyDifference = evening.AvgBuyPrice - morning.AvgBuyPrice
	out.SellDifference = evening.AvgSellPrice - morning.AvgSellPrice
	out.MorningCheaper = morning.AvgBuyPrice < evening.AvgBuyPrice
	out.EveningPricier = evening.AvgSellPrice > morning.AvgSellPrice
	return out
}

func summarize(p Period, eligible []aggregate.HourBucket) PeriodSummary {
	s := PeriodSummary{Name: p.Name, FromHour: p.FromHour, ToHour: p.ToHour}
	var buy, sell float64
	for _, b := range eligible {
		if !p.Contains(b.Hour) {
			continue
		}
		s.Hours++
		buy += b.AvgBuyPrice
		sell += b.AvgSellPrice
	}
	if s.Hours > 0 {
		s.AvgBuyPrice = buy / float64(s.Hours)
		s.AvgSellPrice = sell / float64(s.Hours)
	}
	return s
}
