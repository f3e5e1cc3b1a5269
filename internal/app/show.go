package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"p2pwatcher/internal/storage"
)

// Show prints recent samples, newest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	samples, err := a.recentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(a.Out, "no samples found")
		return nil
	}

	loc, err := a.Config.Location()
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		for i := len(samples) - 1; i >= 0; i-- {
			sample := samples[i]
			sample.Timestamp = sample.Timestamp.In(loc)
			if err := enc.Encode(sample); err != nil {
				return err
			}
		}
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tBuy\tBuyer\tSell\tSeller\tSpread\tSpread%\tMin\tBank")

	for i := len(samples) - 1; i >= 0; i-- {
		sample := samples[i]
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			sample.Timestamp.In(loc).Format(time.DateTime),
			formatDecimal(sample.BuyPrice, 2),
			sanitizeInline(sample.BuyerName),
			formatDecimal(sample.SellPrice, 2),
			sanitizeInline(sample.SellerName),
			formatDecimal(sample.Spread, 2),
			formatDecimal(sample.SpreadPercent, 2),
			sample.MinAmount,
			bankLabel(sample.Bank),
		)
	}

	return writer.Flush()
}

// recentSamples returns up to limit newest samples, oldest first. PostgreSQL
// answers with a bounded query; other gateways load the snapshot and slice it.
func (a *App) recentSamples(ctx context.Context, limit int) ([]storage.Sample, error) {
	gw, closeGw, err := a.openGateway(ctx)
	if err != nil {
		return nil, err
	}
	defer closeGw()
	if gw == nil {
		return nil, fmt.Errorf("persistence.driver is none; cannot show samples")
	}

	if store, ok := gw.(*storage.Store); ok {
		samples, err := store.ListRecentSamples(ctx, limit)
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
			samples[i], samples[j] = samples[j], samples[i]
		}
		return samples, nil
	}

	samples, err := gw.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples, nil
}

func bankLabel(code string) string {
	if code == "" {
		return "all"
	}
	return code
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
