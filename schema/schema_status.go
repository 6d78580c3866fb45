package schema

import "time"

// PoolStatus represents the state of the connection pool.
type PoolStatus struct {
	Backend        string        `json:"backend"`
	MaxConnections int           `json:"max_connections"`
	Open           int           `json:"open"`
	InUse          int           `json:"in_use"`
	Idle           int           `json:"idle"`
	Waiters        int           `json:"waiters"`
	WaitCount      int64         `json:"wait_count"`
	TimeoutCount   int64         `json:"timeout_count"`
	AcquireTimeout time.Duration `json:"acquire_timeout"`
}

// CacheStats represents the counters of one in-memory cache.
type CacheStats struct {
	Name        string        `json:"name"`
	Entries     int           `json:"entries"`
	Capacity    int           `json:"capacity"`
	TTL         time.Duration `json:"ttl"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evictions   int64         `json:"evictions"`
	Expirations int64         `json:"expirations"`
}

// ExecutorStats represents the counters of the cached statement executor.
type ExecutorStats struct {
	CacheHits       int64         `json:"cache_hits"`
	CacheMisses     int64         `json:"cache_misses"`
	QueriesExecuted int64         `json:"queries_executed"`
	AvgQueryTime    time.Duration `json:"avg_query_time"`
	HitRate         float64       `json:"hit_rate"`
	Caches          []CacheStats  `json:"caches"`
	Pool            PoolStatus    `json:"pool"`
}

// MonitorStatus represents the status of the performance log store.
type MonitorStatus struct {
	Backend          string    `json:"backend"`
	Location         string    `json:"location"`
	Connected        bool      `json:"connected"`
	Selections       int       `json:"selections"`
	Feedback         int       `json:"feedback"`
	Calibrations     int       `json:"calibrations"`
	LastSelection    time.Time `json:"last_selection"`
	MigrationVersion int       `json:"migration_version,omitempty"`
}

// Recommendation is one piece of tuning advice derived from config and stats.
type Recommendation struct {
	Area        string `json:"area"`
	Setting     string `json:"setting"`
	Current     string `json:"current"`
	Recommended string `json:"recommended"`
	Reason      string `json:"reason"`
}
