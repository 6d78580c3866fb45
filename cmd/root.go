package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/engine"
	"github.com/huangsam/querymancer/internal/outwriter"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// profile holds profiling configuration.
var profile = &contract.ProfileConfig{}

// eng is the engine shared by the running command. It is nil until engineSetup runs.
var eng *engine.Engine

// metrics is only created when a command serves it.
var metrics *telemetry.Metrics

// ow renders every command result.
var ow = outwriter.NewOutWriter()

// startProfiling starts CPU and memory profiling if enabled.
func startProfiling() error {
	if !profile.Enabled {
		return nil
	}

	// Start CPU profiling
	cpuFile, err := os.Create(profile.Prefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stderr, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", profile.Prefix, profile.Prefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if !profile.Enabled {
		return nil
	}

	pprof.StopCPUProfile()

	// Write memory profile
	memFile, err := os.Create(profile.Prefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stderr, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", profile.Prefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "querymancer",
	Short:              "Route queries between a fast and an accurate backend by complexity.",
	Long:               `Querymancer scores each query, sends it to the cheapest backend that can answer it well, and learns the cut-off from your feedback.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeEngine()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Set config file name and paths
		viper.SetConfigName(".querymancer") // Name of config file (without extension)
		viper.SetConfigType("yaml")         // We'll use YAML format
		viper.AddConfigPath(".")            // Look in the current directory
		viper.AddConfigPath("$HOME")        // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("QUERYMANCER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("db-backend", schema.SQLiteBackend)
	viper.SetDefault("max-connections", contract.DefaultMaxConnections)
	viper.SetDefault("acquire-timeout", contract.DefaultAcquireTimeout.String())
	viper.SetDefault("query-cache-size", contract.DefaultQueryCacheSize)
	viper.SetDefault("query-cache-ttl", contract.DefaultQueryCacheTTL.String())
	viper.SetDefault("schema-cache-ttl", contract.DefaultSchemaCacheTTL.String())
	viper.SetDefault("complexity-cache-size", contract.DefaultComplexityCacheSize)
	viper.SetDefault("complexity-cache-ttl", contract.DefaultComplexityCacheTTL.String())
	viper.SetDefault("threshold", contract.DefaultThreshold)
	viper.SetDefault("calibration-interval", contract.DefaultCalibrationInterval.String())
	viper.SetDefault("min-samples", contract.DefaultMinSamples)
	viper.SetDefault("monitor-backend", schema.JSONBackend)
	viper.SetDefault("max-messages", contract.DefaultMaxMessages)
	viper.SetDefault("max-token-estimate", contract.DefaultMaxTokenEstimate)
	viper.SetDefault("log-level", "warn")
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(_ context.Context, _ *cobra.Command, args []string) error {
	// Handle profiling flag
	profilePrefix := viper.GetString("profile")
	if err := contract.ProcessProfilingConfig(profile, profilePrefix); err != nil {
		return fmt.Errorf("failed to process profiling config: %w", err)
	}
	if profile.Enabled {
		if err := startProfiling(); err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	input.Query = strings.Join(args, " ")

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	// 5. Apply the ambient settings that depend on the validated config.
	if err := contract.ConfigureLogging(cfg.LogLevel, os.Stderr); err != nil {
		return err
	}
	color.NoColor = !cfg.UseColors
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// engineSetup runs sharedSetup and builds the engine on the configured record store.
func engineSetup(cmd *cobra.Command, args []string) error {
	if err := sharedSetup(rootCtx, cmd, args); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		metrics = telemetry.New()
	}
	e, err := engine.New(cfg, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	eng = e
	return nil
}

// closeEngine releases the engine opened by engineSetup, if any.
func closeEngine() error {
	if eng == nil {
		return nil
	}
	err := eng.Close()
	eng = nil
	return err
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// StopProfiling stops profiling if enabled.
func StopProfiling() error {
	return stopProfiling()
}
