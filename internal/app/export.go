package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"p2pwatcher/internal/aggregate"
	"p2pwatcher/internal/storage"
)

// Export renders persisted samples as CSV and/or PNG, plus optional hourly
// rollups.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.HourlyCSVPath == "" && opts.HourlyPNGPath == "" {
		return errors.New("at least one of --csv, --png, --hourly-csv or --hourly-png must be provided")
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errors.New("from must be before to")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	all, err := a.loadSamples(ctx)
	if err != nil {
		return err
	}
	samples := filterWindow(all, opts.From, opts.To)
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	// hourly rollups use every sample in the window, not the downsampled set
	buckets := aggregate.FromSamples(samples)
	if opts.HourlyCSVPath != "" {
		if err := writeHourlyCSV(opts.HourlyCSVPath, buckets); err != nil {
			return err
		}
	}
	if opts.HourlyPNGPath != "" {
		if err := writeHourlyPNG(opts.HourlyPNGPath, buckets); err != nil {
			return err
		}
	}

	return nil
}

func filterWindow(samples []storage.Sample, from, to *time.Time) []storage.Sample {
	if from == nil && to == nil {
		return samples
	}
	out := make([]storage.Sample, 0, len(samples))
	for _, s := range samples {
		if from != nil && s.Timestamp.Before(*from) {
			continue
		}
		if to != nil && !s.Timestamp.Before(*to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func downsampleSamples(samples []storage.Sample, max int) []storage.Sample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.Sample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.Sample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := storage.WriteCSV(file, samples); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeHourlyCSV(path string, buckets []aggregate.HourBucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"hour", "count", "avg_buy", "avg_sell", "avg_spread_pct", "min_buy", "max_sell"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, b := range buckets {
		record := []string{
			strconv.Itoa(b.Hour),
			strconv.FormatUint(b.Count, 10),
			strconv.FormatFloat(b.AvgBuyPrice, 'f', 4, 64),
			strconv.FormatFloat(b.AvgSellPrice, 'f', 4, 64),
			strconv.FormatFloat(b.AvgSpreadPercent, 'f', 4, 64),
			strconv.FormatFloat(b.MinBuyPrice, 'f', 4, 64),
			strconv.FormatFloat(b.MaxSellPrice, 'f', 4, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func writeSamplesPNG(path string, samples []storage.Sample) error {
	if len(samples) < 2 {
		return errors.New("at least two samples are needed for a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	buy := make([]float64, len(samples))
	sell := make([]float64, len(samples))
	spread := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.Timestamp
		buy[i] = sample.BuyPrice.InexactFloat64()
		sell[i] = sample.SellPrice.InexactFloat64()
		spread[i] = sample.SpreadPercent.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (UAH/USDT)",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Spread (%)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Buy",
				XValues: x,
				YValues: buy,
			},
			chart.TimeSeries{
				Name:    "Sell",
				XValues: x,
				YValues: sell,
			},
			chart.TimeSeries{
				Name:    "Spread %",
				XValues: x,
				YValues: spread,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func writeHourlyPNG(path string, buckets []aggregate.HourBucket) error {
	if len(buckets) == 0 {
		return errors.New("no hourly data to chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(buckets))
	for _, b := range buckets {
		bars = append(bars, chart.Value{Label: fmt.Sprintf("%02d", b.Hour), Value: b.AvgSpreadPercent})
	}

	graph := chart.BarChart{
		Title:    "Average spread % by hour",
		Width:    1280,
		Height:   720,
		BarWidth: 36,
		Bars:     bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
