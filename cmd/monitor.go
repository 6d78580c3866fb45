package cmd

import (
	"fmt"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/monitor"
	"github.com/huangsam/querymancer/internal/parquet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// monitorCmd groups the performance log management commands.
//
// Note: clear and migrate only run sharedSetup. They must not hold the
// record store open while they delete or restructure it.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Manage the performance log",
	Long: `Manage the log of routing decisions, feedback and calibrations.

Supported backends: JSON file (default), SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show record counts and connection details
  clear   - Remove all recorded data
  migrate - Run database schema migrations

Examples:
  querymancer monitor status
  querymancer monitor migrate --monitor-backend postgresql --monitor-db-connect "host=localhost dbname=qm"`,
}

// monitorStatusCmd shows the record store status.
var monitorStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display record counts and connection details",
	Args:    cobra.NoArgs,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := eng.Monitor().Status()
		if err != nil {
			return fmt.Errorf("failed to get monitor status: %w", err)
		}
		return ow.WriteStatus(status, cfg)
	},
}

// monitorClearCmd removes every record.
var monitorClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded selections, feedback and calibrations",
	Long: `Delete the performance log. The routing threshold returns to its configured
initial value on the next run.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  querymancer export --output-file backup/
  querymancer monitor clear`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := monitor.Clear(cfg.MonitorBackend, cfg.MonitorPath, cfg.MonitorDBConnect); err != nil {
			return fmt.Errorf("failed to clear monitor data: %w", err)
		}
		fmt.Println("Monitor data cleared successfully.")
		return nil
	},
}

// monitorMigrateCmd runs database migrations for the SQL record store.
var monitorMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the SQL performance log.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  querymancer monitor migrate --monitor-backend sqlite

  # Rollback everything
  querymancer monitor migrate --monitor-backend sqlite --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		connStr := cfg.MonitorDBConnect
		if connStr == "" {
			connStr = contract.GetMonitorDBFilePath()
		}
		result, err := monitor.Migrate(cfg.MonitorBackend, connStr, viper.GetInt("target-version"))
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if !result.Changed {
			fmt.Printf("No migrations to apply. Version: %d\n", result.To)
			return nil
		}
		fmt.Printf("Migrated from version %d to %d\n", result.From, result.To)
		return nil
	},
}

// exportCmd writes the performance log to Parquet files.
var exportCmd = &cobra.Command{
	Use:   "export --output-file <dir>",
	Short: "Export the performance log to Parquet for analytics",
	Long: `Write selections, feedback and calibrations as three Parquet files into the
directory given by --output-file.

Examples:
  querymancer export --output-file qm-export
  duckdb -c "SELECT backend, avg(complexity) FROM read_parquet('qm-export/selections.parquet') GROUP BY 1"`,
	Args:    cobra.NoArgs,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.OutputFile == "" {
			return fmt.Errorf("--output-file is required for export")
		}
		paths, err := parquet.ExportMetricsLog(eng.Monitor().Snapshot(), cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to export monitor data: %w", err)
		}
		for _, p := range paths {
			fmt.Printf("Wrote %s\n", p)
		}
		return nil
	},
}
