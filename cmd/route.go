package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// readHistory loads conversation history from a JSON file.
func readHistory(path string) ([]schema.Message, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	var history []schema.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}
	return history, nil
}

// routeCmd runs the full request pipeline for one query.
var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Pick the fast or accurate backend for a query",
	Long: `Refine a query, score its complexity and route it to the fast or the accurate backend.

The decision is recorded in the performance log so later feedback can be joined
to it. When a history file is given, the conversation is pruned to the most
relevant messages and the token savings are reported.

Examples:
  # Route a single query
  querymancer route "show me the trend of monthly revenue by segment"

  # Route with conversation history and JSON output
  querymancer route "and for 2025?" --history-file chat.json --output json`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		history, err := readHistory(viper.GetString("history-file"))
		if err != nil {
			return err
		}
		start := time.Now()
		req, err := eng.Route(input.Query, history)
		if err != nil {
			contract.LogWarn("Selection was not persisted", err)
		}
		return ow.WriteRequest(req, cfg, time.Since(start))
	},
}

// analyzeCmd shows the complexity breakdown without routing.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Show the complexity breakdown of a query",
	Long: `Score a query on length, reasoning patterns, SQL complexity and cognitive load.

Nothing is recorded in the performance log.

Examples:
  querymancer analyze "SELECT * FROM orders"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		score := eng.Analyzer().Analyze(input.Query)
		return ow.WriteAnalysis(input.Query, score, cfg)
	},
}

// refineCmd shows what the token pipeline strips from a query.
var refineCmd = &cobra.Command{
	Use:   "refine <query>",
	Short: "Strip filler and boilerplate from a query",
	Long: `Remove filler phrases, redundant qualifiers and domain boilerplate from a query
and estimate how many tokens that saves.

Examples:
  querymancer refine "Could you please tell me the total sales"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return ow.WriteRefinement(eng.Refine(input.Query), cfg)
	},
}

// feedbackCmd records a rating for a routed query.
var feedbackCmd = &cobra.Command{
	Use:   "feedback <query> --rating N",
	Short: "Rate the response to a routed query",
	Long: `Record a 1-5 rating for a query that was routed before. Ratings are joined to
the most recent routing decision for the same query and drive calibration.

Out of range ratings are clamped to 1..5.

Examples:
  querymancer feedback "SELECT * FROM orders" --rating 4 --comment "fast and right"`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: engineSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("rating") && !viper.IsSet("rating") {
			return fmt.Errorf("--rating is required")
		}
		if err := eng.Feedback(input.Query, cfg.Rating, cfg.Comment); err != nil {
			return err
		}
		fmt.Printf("Recorded rating %d\n", schema.ClampRating(cfg.Rating))
		return nil
	},
}

// calibrateCmd runs a calibration pass on demand.
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Recalibrate the routing threshold from feedback now",
	Long: `Move the threshold toward the complexity percentile suggested by recent ratings.

Calibration needs at least --min-samples ratings for each backend. The threshold
moves by at most 0.05 per pass and stays within [0.1, 0.5].

Examples:
  querymancer calibrate --min-samples 10`,
	Args:    cobra.NoArgs,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		ev, applied, err := eng.Calibrate()
		if err != nil {
			contract.LogWarn("Calibration was not persisted", err)
		}
		return ow.WriteCalibration(ev, applied, eng.Router().Threshold(), cfg)
	},
}
