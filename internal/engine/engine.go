// Package engine wires the analyzer, router, monitor, caches and connection
// pool from a validated config. Commands and the MCP server share it.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/huangsam/querymancer/core"
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/internal/iocache"
	"github.com/huangsam/querymancer/internal/monitor"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// Engine owns every long-lived component. The connection pool is opened on
// first use so commands that never touch the store never connect to it.
type Engine struct {
	cfg      *contract.Config
	metrics  *telemetry.Metrics
	monitor  *monitor.Monitor
	analyzer *core.Analyzer
	router   *core.Router
	pipeline *core.Pipeline

	execMu sync.Mutex
	exec   *iocache.CachedExecutor
}

// New opens the configured record store and builds an engine on top of it.
func New(cfg *contract.Config, metrics *telemetry.Metrics) (*Engine, error) {
	path := cfg.MonitorPath
	connStr := cfg.MonitorDBConnect
	switch cfg.MonitorBackend {
	case schema.JSONBackend, "":
		if path == "" {
			path = contract.GetMonitorFilePath()
		}
	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = contract.GetMonitorDBFilePath()
		}
	}
	store, err := monitor.OpenStore(cfg.MonitorBackend, path, connStr)
	if err != nil {
		return nil, err
	}
	e, err := NewWithStore(cfg, store, metrics)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// NewWithStore builds an engine on an already opened record store.
// The threshold and calibration time are restored from the persisted log.
func NewWithStore(cfg *contract.Config, store contract.RecordStore, metrics *telemetry.Metrics) (*Engine, error) {
	mon, err := monitor.New(store)
	if err != nil {
		return nil, err
	}

	complexity := iocache.NewTTLCache[schema.ComplexityScore](
		core.ComplexityCacheName, cfg.ComplexityCacheSize, cfg.ComplexityCacheTTL, metrics)
	catalogs := core.DefaultCatalogs()
	analyzer := core.NewAnalyzer(catalogs, complexity)
	calibrator := core.NewCalibrator(cfg.Threshold, cfg.MinSamples, metrics)
	router := core.NewRouter(analyzer, calibrator, mon, cfg.CalibrationInterval, metrics)
	tokens := core.NewTokenOptimizer(catalogs, analyzer)

	restore(mon.Snapshot(), calibrator, router)

	return &Engine{
		cfg:      cfg,
		metrics:  metrics,
		monitor:  mon,
		analyzer: analyzer,
		router:   router,
		pipeline: core.NewPipeline(tokens, router, cfg.MaxMessages, cfg.MaxTokenEstimate),
	}, nil
}

// restore adopts the threshold of the last calibration. The calibration clock
// starts at the last calibration, else at the first recorded selection.
func restore(log schema.MetricsLog, calibrator *core.Calibrator, router *core.Router) {
	switch {
	case len(log.Calibrations) > 0:
		last := log.Calibrations[len(log.Calibrations)-1]
		calibrator.Restore(last.NewThreshold)
		router.SetLastCalibration(last.Timestamp)
	case len(log.Selections) > 0:
		router.SetLastCalibration(log.Selections[0].Timestamp)
	}
	contract.Logger().Debug().
		Float64("threshold", calibrator.Threshold()).
		Time("last_calibration", router.LastCalibration()).
		Int("selections", len(log.Selections)).
		Msg("restored routing state")
}

// Config returns the config the engine was built from.
func (e *Engine) Config() *contract.Config { return e.cfg }

// Metrics returns the shared collectors, which may be nil.
func (e *Engine) Metrics() *telemetry.Metrics { return e.metrics }

// Monitor returns the performance monitor.
func (e *Engine) Monitor() *monitor.Monitor { return e.monitor }

// Analyzer returns the complexity analyzer.
func (e *Engine) Analyzer() *core.Analyzer { return e.analyzer }

// Router returns the router.
func (e *Engine) Router() *core.Router { return e.router }

// Pipeline returns the full request pipeline.
func (e *Engine) Pipeline() *core.Pipeline { return e.pipeline }

// Route runs a query and its history through the pipeline.
func (e *Engine) Route(query string, history []schema.Message) (schema.OptimizedRequest, error) {
	return e.pipeline.OptimizeQueryExecution(query, history)
}

// Feedback records a rating under the text the pipeline routed the query as.
func (e *Engine) Feedback(query string, rating int, comment string) error {
	return e.monitor.RecordFeedback(e.pipeline.CanonicalQuery(query), rating, comment)
}

// Calibrate runs a calibration pass now.
func (e *Engine) Calibrate() (schema.CalibrationEvent, bool, error) {
	return e.router.Calibrate()
}

// Refine shows what the token pipeline does to a query without routing it.
func (e *Engine) Refine(query string) schema.Refinement {
	refined := e.pipeline.Tokens().RefineQuery(query)
	return schema.Refinement{
		Query:        query,
		Refined:      refined,
		Domain:       e.analyzer.DetectDomain(query),
		TokensBefore: core.EstimateTokens(query),
		TokensAfter:  core.EstimateTokens(refined),
	}
}

// Executor opens the connection pool on first use and returns the cached executor.
func (e *Engine) Executor() (*iocache.CachedExecutor, error) {
	e.execMu.Lock()
	defer e.execMu.Unlock()
	if e.exec != nil {
		return e.exec, nil
	}

	pool, err := dbpool.Open(dbpool.Options{
		Backend:        e.cfg.DBBackend,
		ConnStr:        e.cfg.DBConnect,
		MaxConnections: e.cfg.MaxConnections,
		AcquireTimeout: e.cfg.AcquireTimeout,
		SQLite:         e.cfg.SQLite,
		Metrics:        e.metrics,
	})
	if err != nil {
		return nil, err
	}
	e.exec = iocache.NewCachedExecutor(pool,
		iocache.NewQueryCache(e.cfg.QueryCacheSize, e.cfg.QueryCacheTTL, e.metrics),
		iocache.NewSchemaCache(contract.DefaultSchemaCacheSize, e.cfg.SchemaCacheTTL, e.metrics),
		e.metrics)
	contract.Logger().Debug().
		Str("backend", string(e.cfg.DBBackend)).
		Int("max_connections", e.cfg.MaxConnections).
		Msg("opened connection pool")
	return e.exec, nil
}

// Advisor returns a SQL advisor backed by the cached executor.
func (e *Engine) Advisor() (*core.Advisor, error) {
	exec, err := e.Executor()
	if err != nil {
		return nil, err
	}
	return core.NewAdvisor(exec, e.cfg.DBBackend), nil
}

// Query runs a statement through the cached executor and times it.
func (e *Engine) Query(ctx context.Context, statement string) (schema.ResultSet, time.Duration, error) {
	exec, err := e.Executor()
	if err != nil {
		return schema.ResultSet{}, 0, err
	}
	start := time.Now()
	rs, err := exec.Query(ctx, statement)
	return rs, time.Since(start), err
}

// Stats gathers the routing state and, when the pool is open, executor counters.
// Recommendations are included when recommend is set.
func (e *Engine) Stats(recommend bool) schema.StatsReport {
	report := schema.StatsReport{
		Threshold:       e.router.Threshold(),
		LastCalibration: e.router.LastCalibration(),
		Performance:     e.monitor.PerformanceByBackend(),
	}
	if cs, ok := e.analyzer.CacheStats(); ok {
		report.Complexity = &cs
	}

	var execStats schema.ExecutorStats
	e.execMu.Lock()
	if e.exec != nil {
		execStats = e.exec.Stats()
		report.Executor = &execStats
	}
	e.execMu.Unlock()

	if recommend {
		report.Recommendations = core.Recommend(e.cfg, execStats)
	}
	return report
}

// Close releases the pool and the record store.
func (e *Engine) Close() error {
	var errs []error
	e.execMu.Lock()
	if e.exec != nil {
		errs = append(errs, e.exec.Pool().Close())
		e.exec = nil
	}
	e.execMu.Unlock()
	errs = append(errs, e.monitor.Close())
	return errors.Join(errs...)
}
