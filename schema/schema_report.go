package schema

import "time"

// StatsReport is everything the stats command shows.
type StatsReport struct {
	Threshold       float64                            `json:"threshold"`
	LastCalibration time.Time                          `json:"last_calibration"`
	Performance     map[BackendKind]BackendPerformance `json:"performance"`
	Executor        *ExecutorStats                     `json:"executor,omitempty"`
	Complexity      *CacheStats                        `json:"complexity_cache,omitempty"`
	Recommendations []Recommendation                   `json:"recommendations,omitempty"`
}

// Refinement is the result of refining one query without routing it.
type Refinement struct {
	Query        string `json:"query"`
	Refined      string `json:"refined"`
	Domain       Domain `json:"domain,omitempty"`
	TokensBefore int    `json:"tokens_before"`
	TokensAfter  int    `json:"tokens_after"`
}
