package cli

import (
	"github.com/spf13/cobra"

	"p2pwatcher/internal/app"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print hourly averages and buy/sell hour strategies from persisted samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{JSON: analyzeJSON})
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Emit the analysis as JSON")
}
