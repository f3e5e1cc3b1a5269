package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"p2pwatcher/internal/fetcher"
	"p2pwatcher/internal/quote"
	"p2pwatcher/internal/scheduler"
	"p2pwatcher/internal/storage"
)

// SimulateAlert runs one tick against fixed buy/sell prices so the alert
// pipeline can be checked end to end.
func (a *App) SimulateAlert(ctx context.Context, buy, sell decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	alerter := a.newAlerter()
	if alerter == nil {
		return errors.New("alerting.threshold_pct must be greater than zero")
	}

	probe, ok := storage.NewSample(storage.SampleInput{BuyPrice: buy, SellPrice: sell}, nil)
	if !ok || probe.SpreadPercent.LessThan(alerter.Threshold()) {
		return fmt.Errorf("simulated spread %s%% is below threshold %s%%",
			probe.SpreadPercent.StringFixed(2), alerter.Threshold().String())
	}

	source := &staticSource{
		buy:  []quote.OrderBookEntry{quote.NewEntry(buy, "simulated-buyer", false)},
		sell: []quote.OrderBookEntry{quote.NewEntry(sell, "simulated-seller", false)},
	}
	monitor, err := a.newMonitor(source, nil, alerter)
	if err != nil {
		return err
	}

	cfg := scheduler.Config{MinAmount: a.Config.Sampling.MinAmount, Bank: a.Config.Sampling.Bank}
	return monitor.Tick(ctx, cfg)
}

type staticSource struct {
	buy  []quote.OrderBookEntry
	sell []quote.OrderBookEntry
}

func (s *staticSource) FetchSide(_ context.Context, side quote.Side, _ int64, _ string) ([]quote.OrderBookEntry, error) {
	if side == quote.Sell {
		return s.sell, nil
	}
	return s.buy, nil
}

var _ fetcher.QuoteSource = (*staticSource)(nil)
