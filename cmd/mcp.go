package cmd

import (
	"errors"
	"net/http"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the querymancer MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents route queries, record
feedback, calibrate and run SQL through the cache via standard tools.

With --metrics-addr, Prometheus metrics are served on /metrics at that address.`,
	PreRunE: engineSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.MetricsAddr != "" {
			serveMetrics(cfg.MetricsAddr)
		}
		return mcp.StartMCPServer(rootCtx, eng, version)
	},
}

// serveMetrics exposes the collectors in the background.
// Nothing is written to stdout, which carries the protocol.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			contract.Logger().Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	contract.Logger().Info().Str("addr", addr).Msg("serving metrics")
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
