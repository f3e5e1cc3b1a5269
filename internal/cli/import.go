package cli

import (
	"github.com/spf13/cobra"

	"p2pwatcher/internal/app"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file.csv>...",
	Short: "Merge CSV files from the legacy collector into persisted history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Import(cmd.Context(), app.ImportOptions{
			Paths:  args,
			DryRun: importDryRun,
		})
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and merge without writing the snapshot")
}
