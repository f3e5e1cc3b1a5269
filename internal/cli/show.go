package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"p2pwatcher/internal/app"
)

var (
	showLimit int
	showJSON  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the most recent persisted P2P samples, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return errors.New("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Limit: showLimit, JSON: showJSON})
	},
}

func init() {
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 20, "How many samples to print")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print newline-delimited JSON instead of a table")
}
