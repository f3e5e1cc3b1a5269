package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"p2pwatcher/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
	exportHourlyCSV string
	exportHourlyPNG string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write persisted samples and hourly rollups to CSV files and PNG charts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		loc, err := a.Config.Location()
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			PNGPath:       exportPNGPath,
			CSVPath:       exportCSVPath,
			MaxPoints:     exportMaxPoints,
			HourlyCSVPath: exportHourlyCSV,
			HourlyPNGPath: exportHourlyPNG,
		}
		if opts.From, err = parseWindowBound("--from", exportFrom, loc); err != nil {
			return err
		}
		if opts.To, err = parseWindowBound("--to", exportTo, loc); err != nil {
			return err
		}

		return a.Export(cmd.Context(), opts)
	},
}

// parseWindowBound accepts RFC3339 or a bare date, which is read as midnight
// in the configured time zone.
func parseWindowBound(flag, value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return &ts, nil
	}
	ts, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: want RFC3339 or YYYY-MM-DD", flag, value)
	}
	return &ts, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Window start, inclusive (RFC3339 or YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Window end, exclusive (RFC3339 or YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Write samples as CSV to this path")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Write a buy/sell/spread time series chart to this path")
	exportCmd.Flags().StringVar(&exportHourlyCSV, "hourly-csv", "", "Write hourly averages as CSV to this path")
	exportCmd.Flags().StringVar(&exportHourlyPNG, "hourly-png", "", "Write an average spread per hour bar chart to this path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Downsample to at most this many samples (defaults to export.max_data_points)")
}
