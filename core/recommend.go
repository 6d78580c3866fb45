package core

import (
	"fmt"
	"strconv"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// Recommendation thresholds.
const (
	recommendedMaxConnections = 10
	recommendedThreshold      = 0.25
	maxSuggestedThreshold     = 0.3
	minLookupsForHitRate      = 20
	lowHitRate                = 0.5
)

// Recommend inspects the configuration and the live executor counters and
// returns tuning advice, grouped by area in a stable order.
func Recommend(cfg *contract.Config, stats schema.ExecutorStats) []schema.Recommendation {
	var recs []schema.Recommendation

	if cfg.QueryCacheSize < contract.DefaultQueryCacheSize {
		recs = append(recs, schema.Recommendation{
			Area:        "database",
			Setting:     "query-cache-size",
			Current:     strconv.Itoa(cfg.QueryCacheSize),
			Recommended: strconv.Itoa(contract.DefaultQueryCacheSize),
			Reason:      "Larger cache improves performance for repeated queries",
		})
	}

	switch {
	case stats.Pool.TimeoutCount > 0:
		recs = append(recs, schema.Recommendation{
			Area:        "database",
			Setting:     "max-connections",
			Current:     strconv.Itoa(cfg.MaxConnections),
			Recommended: strconv.Itoa(max(cfg.MaxConnections*2, recommendedMaxConnections)),
			Reason:      fmt.Sprintf("%d acquire calls timed out waiting for a connection", stats.Pool.TimeoutCount),
		})
	case cfg.MaxConnections < recommendedMaxConnections:
		recs = append(recs, schema.Recommendation{
			Area:        "database",
			Setting:     "max-connections",
			Current:     strconv.Itoa(cfg.MaxConnections),
			Recommended: strconv.Itoa(recommendedMaxConnections),
			Reason:      "More connections handle concurrent requests better",
		})
	}

	lookups := stats.CacheHits + stats.CacheMisses
	if lookups >= minLookupsForHitRate && stats.HitRate < lowHitRate {
		recs = append(recs, schema.Recommendation{
			Area:        "cache",
			Setting:     "query-cache-ttl",
			Current:     cfg.QueryCacheTTL.String(),
			Recommended: (cfg.QueryCacheTTL * 2).String(),
			Reason:      fmt.Sprintf("Only %.0f%% of %d lookups hit the result cache", stats.HitRate*100, lookups),
		})
	}

	if cfg.Threshold > maxSuggestedThreshold {
		recs = append(recs, schema.Recommendation{
			Area:        "routing",
			Setting:     "threshold",
			Current:     strconv.FormatFloat(cfg.Threshold, 'f', 2, 64),
			Recommended: strconv.FormatFloat(recommendedThreshold, 'f', 2, 64),
			Reason:      "A high threshold sends analytical queries to the fast backend",
		})
	}

	if cfg.CalibrationInterval > 7*24*time.Hour {
		recs = append(recs, schema.Recommendation{
			Area:        "routing",
			Setting:     "calibration-interval",
			Current:     cfg.CalibrationInterval.String(),
			Recommended: contract.DefaultCalibrationInterval.String(),
			Reason:      "Feedback is folded into the threshold too rarely",
		})
	}

	if cfg.MonitorBackend == schema.NoneBackend {
		recs = append(recs, schema.Recommendation{
			Area:        "routing",
			Setting:     "monitor-backend",
			Current:     string(cfg.MonitorBackend),
			Recommended: string(schema.JSONBackend),
			Reason:      "Without a performance log the threshold can never be calibrated",
		})
	}
	return recs
}
