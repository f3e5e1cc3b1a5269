package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"p2pwatcher/internal/aggregate"
	"p2pwatcher/internal/analyzer"
)

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	JSON bool
}

// Analyze rebuilds the hourly rollup from persisted samples and prints the
// strategy report.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	samples, err := a.loadSamples(ctx)
	if err != nil {
		return err
	}

	buckets := aggregate.FromSamples(samples)
	result := analyzer.Analyze(buckets)

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			TotalRecords int                    `json:"totalRecords"`
			HourlyData   []aggregate.HourBucket `json:"hourlyData"`
			Analysis     analyzer.Result        `json:"analysis"`
		}{len(samples), buckets, result})
	}

	return writeReport(a.Out, len(samples), buckets, result)
}

func writeReport(w io.Writer, records int, buckets []aggregate.HourBucket, res analyzer.Result) error {
	fmt.Fprintf(w, "Records: %d, hours with data: %d\n", records, res.Confidence.HoursWithData)
	for _, warning := range res.Confidence.Warnings {
		fmt.Fprintf(w, "WARNING: %s\n", warning)
	}
	if len(buckets) == 0 {
		fmt.Fprintln(w, "no data to analyze")
		return nil
	}

	fmt.Fprintln(w, "\nHourly averages")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Hour\tCount\tAvg buy\tAvg sell\tAvg spread%\tMin buy\tMax sell\t")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%02d:00\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			b.Hour, b.Count, b.AvgBuyPrice, b.AvgSellPrice, b.AvgSpreadPercent, b.MinBuyPrice, b.MaxSellPrice)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	writeHours(w, "Cheapest hours to buy", res.CheapestBuyHours, func(b aggregate.HourBucket) float64 { return b.AvgBuyPrice }, "%.2f")
	writeHours(w, "Best hours to sell", res.PriciestSellHours, func(b aggregate.HourBucket) float64 { return b.AvgSellPrice }, "%.2f")
	writeHours(w, "Widest spread hours", res.WidestSpreadHours, func(b aggregate.HourBucket) float64 { return b.AvgSpreadPercent }, "%.2f%%")

	fmt.Fprintln(w, "\nStrategies")
	if len(res.Strategies) == 0 {
		fmt.Fprintln(w, "  no profitable hour pair found")
	}
	for i, s := range res.Strategies {
		fmt.Fprintf(w, "  %d. buy at %02d:00 (%.2f), sell at %02d:00 (%.2f): +%.2f UAH, %.2f%%\n",
			i+1, s.BuyHour, s.BuyPrice, s.SellHour, s.SellPrice, s.Profit, s.ProfitPercent)
	}

	writeTimeOfDay(w, res.TimeOfDay)

	fmt.Fprintln(w, "\nConclusion")
	if res.Dispersion.Stable {
		fmt.Fprintf(w, "  prices are stable (buy range %.2f UAH); time-based arbitrage is unlikely\n", res.Dispersion.BuyPriceRange)
	} else {
		fmt.Fprintf(w, "  hourly buy prices differ by %.2f UAH; timing purchases may pay off\n", res.Dispersion.BuyPriceRange)
	}
	return nil
}

func writeHours(w io.Writer, title string, hours []aggregate.HourBucket, value func(aggregate.HourBucket) float64, format string) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(hours) == 0 {
		fmt.Fprintln(w, "  not enough data")
		return
	}
	parts := make([]string, 0, len(hours))
	for _, b := range hours {
		parts = append(parts, fmt.Sprintf("%02d:00 "+format, b.Hour, value(b)))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, ", "))
}

func writeTimeOfDay(w io.Writer, tod analyzer.TimeOfDay) {
	fmt.Fprintln(w, "\nTime of day")
	for _, p := range tod.Periods {
		if p.Hours == 0 {
			fmt.Fprintf(w, "  %-9s %02d-%02d  no data\n", p.Name, p.FromHour, p.ToHour)
			continue
		}
		fmt.Fprintf(w, "  %-9s %02d-%02d  buy %.2f  sell %.2f\n", p.Name, p.FromHour, p.ToHour, p.AvgBuyPrice, p.AvgSellPrice)
	}
	if tod.Insufficient {
		fmt.Fprintln(w, "  morning vs evening: insufficient data")
		return
	}
	buyDir := "cheaper"
	if !tod.MorningCheaper {
		buyDir = "not cheaper"
	}
	sellDir := "pricier"
	if !tod.EveningPricier {
		sellDir = "not pricier"
	}
	fmt.Fprintf(w, "  morning buy is %s than evening (diff %+.2f)\n", buyDir, tod.BuyDifference)
	fmt.Fprintf(w, "  evening sell is %s than morning (diff %+.2f)\n", sellDir, tod.SellDifference)
}
