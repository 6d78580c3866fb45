package cmd

import (
	"github.com/spf13/cobra"
)

// statsCmd shows routing performance.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the routing threshold and per-backend ratings",
	Long: `Display the current threshold, when it was last calibrated, and the rating
statistics of each backend. Median and standard deviation appear once a backend
has at least five ratings.

Examples:
  # Current performance
  querymancer stats

  # Add tuning recommendations
  querymancer stats --recommend`,
	Args:    cobra.NoArgs,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return ow.WriteStats(eng.Stats(cfg.Recommend), cfg)
	},
}

// historyCmd lists the recorded selections, feedback and calibrations.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded selections, feedback and calibrations",
	Long: `Print the performance log in append order.

Examples:
  # Last 20 records of each kind
  querymancer history --limit 20

  # Everything, as CSV
  querymancer history --output csv --output-file history.csv`,
	Args:    cobra.NoArgs,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return ow.WriteHistory(eng.Monitor().Snapshot(), cfg)
	},
}
