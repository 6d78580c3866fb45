// Package cmd defines the command-line interface for querymancer.
package cmd

import (
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(adviseCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the monitor subcommands to the parent monitor command
	monitorCmd.AddCommand(monitorStatusCmd)
	monitorCmd.AddCommand(monitorClearCmd)
	monitorCmd.AddCommand(monitorMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("db-backend", string(schema.SQLiteBackend), "Database backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string (SQLite file path, or e.g. user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().Int("max-connections", contract.DefaultMaxConnections, "Maximum pooled database connections")
	rootCmd.PersistentFlags().String("acquire-timeout", contract.DefaultAcquireTimeout.String(), "How long to wait for a free connection")
	rootCmd.PersistentFlags().Int("query-cache-size", contract.DefaultQueryCacheSize, "Maximum cached result sets")
	rootCmd.PersistentFlags().String("query-cache-ttl", contract.DefaultQueryCacheTTL.String(), "Lifetime of a cached result set")
	rootCmd.PersistentFlags().String("schema-cache-ttl", contract.DefaultSchemaCacheTTL.String(), "Lifetime of cached table metadata")
	rootCmd.PersistentFlags().Int("complexity-cache-size", contract.DefaultComplexityCacheSize, "Maximum cached complexity scores")
	rootCmd.PersistentFlags().String("complexity-cache-ttl", contract.DefaultComplexityCacheTTL.String(), "Lifetime of a cached complexity score")
	rootCmd.PersistentFlags().Float64("threshold", contract.DefaultThreshold, "Initial complexity threshold between fast and accurate")
	rootCmd.PersistentFlags().String("calibration-interval", contract.DefaultCalibrationInterval.String(), "Minimum time between automatic calibrations")
	rootCmd.PersistentFlags().Int("min-samples", contract.DefaultMinSamples, "Ratings per backend required before calibrating")
	rootCmd.PersistentFlags().String("monitor-backend", string(schema.JSONBackend), "Performance log backend: json or sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("monitor-path", "", "Path of the JSON performance log (defaults to ~/.querymancer_metrics.json)")
	rootCmd.PersistentFlags().String("monitor-db-connect", "", "Connection string of the SQL performance log")
	rootCmd.PersistentFlags().Int("max-messages", contract.DefaultMaxMessages, "Maximum history messages kept per request")
	rootCmd.PersistentFlags().Int("max-token-estimate", contract.DefaultMaxTokenEstimate, "Token budget for pruned history (0 = no budget)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug or info or warn or error or off")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of routeCmd to Viper
	routeCmd.Flags().String("history-file", "", "JSON file with the conversation history ([{\"role\",\"content\"}])")
	if err := viper.BindPFlags(routeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding route flags", err)
	}

	// Bind all flags of feedbackCmd to Viper
	feedbackCmd.Flags().IntP("rating", "r", 0, "Rating from 1 (poor) to 5 (excellent)")
	feedbackCmd.Flags().String("comment", "", "Optional comment stored with the rating")
	if err := viper.BindPFlags(feedbackCmd.Flags()); err != nil {
		contract.LogFatal("Error binding feedback flags", err)
	}

	// Bind all flags of statsCmd to Viper
	statsCmd.Flags().Bool("recommend", false, "Include tuning recommendations")
	if err := viper.BindPFlags(statsCmd.Flags()); err != nil {
		contract.LogFatal("Error binding stats flags", err)
	}

	// Bind all flags of historyCmd to Viper
	historyCmd.Flags().IntP("limit", "l", 0, "Show only the most recent records of each kind (0 = everything)")
	if err := viper.BindPFlags(historyCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history flags", err)
	}

	// Bind all flags of adviseCmd to Viper
	adviseCmd.Flags().Bool("explain", false, "Include the execution plan")
	if err := viper.BindPFlags(adviseCmd.Flags()); err != nil {
		contract.LogFatal("Error binding advise flags", err)
	}

	// Bind all flags of mcpCmd to Viper
	mcpCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	if err := viper.BindPFlags(mcpCmd.Flags()); err != nil {
		contract.LogFatal("Error binding mcp flags", err)
	}

	// Bind all flags of monitorMigrateCmd to Viper
	monitorMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(monitorMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding monitor migrate flags", err)
	}
}
