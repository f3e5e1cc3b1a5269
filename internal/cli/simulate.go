package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateBuy  string
	simulateSell string
)

var simulateCmd = &cobra.Command{
	Use:     "simulate-alert",
	Short:   "Run one tick with fixed prices to exercise spread alerting",
	Example: "  p2pwatcher simulate-alert --buy 41.20 --sell 42.35",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		buy, err := parsePrice("--buy", simulateBuy)
		if err != nil {
			return err
		}
		sell, err := parsePrice("--sell", simulateSell)
		if err != nil {
			return err
		}
		return getApp().SimulateAlert(cmd.Context(), buy, sell)
	},
}

func parsePrice(flag, value string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", flag, value, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be greater than 0", flag)
	}
	return price, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulateBuy, "buy", "", "Buy price in UAH per USDT")
	simulateCmd.Flags().StringVar(&simulateSell, "sell", "", "Sell price in UAH per USDT")
	_ = simulateCmd.MarkFlagRequired("buy")
	_ = simulateCmd.MarkFlagRequired("sell")
}
