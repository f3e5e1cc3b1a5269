package cli

import (
	"github.com/spf13/cobra"
)

var runAutostart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sampling service and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if cmd.Flags().Changed("autostart") {
			a.Config.Sampling.Autostart = runAutostart
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAutostart, "autostart", false, "Start sampling immediately with sampling.min_amount and sampling.bank")
}
