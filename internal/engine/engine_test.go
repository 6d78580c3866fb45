package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/monitor"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *contract.Config {
	t.Helper()
	dir := t.TempDir()
	return &contract.Config{
		DBBackend:           schema.SQLiteBackend,
		DBConnect:           filepath.Join(dir, "shop.db"),
		MaxConnections:      2,
		AcquireTimeout:      2 * time.Second,
		SQLite:              contract.DefaultSQLiteSettings(),
		QueryCacheSize:      contract.DefaultQueryCacheSize,
		QueryCacheTTL:       contract.DefaultQueryCacheTTL,
		SchemaCacheTTL:      contract.DefaultSchemaCacheTTL,
		ComplexityCacheSize: contract.DefaultComplexityCacheSize,
		ComplexityCacheTTL:  contract.DefaultComplexityCacheTTL,
		Threshold:           contract.DefaultThreshold,
		CalibrationInterval: contract.DefaultCalibrationInterval,
		MinSamples:          contract.DefaultMinSamples,
		MonitorBackend:      schema.JSONBackend,
		MonitorPath:         filepath.Join(dir, "metrics.json"),
		MaxMessages:         contract.DefaultMaxMessages,
		MaxTokenEstimate:    contract.DefaultMaxTokenEstimate,
	}
}

func newTestEngine(t *testing.T, cfg *contract.Config) *Engine {
	t.Helper()
	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineRouteAndFeedback(t *testing.T) {
	e := newTestEngine(t, testConfig(t))

	req, err := e.Route("I would like to know SELECT * FROM orders", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders", req.RefinedQuery)
	assert.Equal(t, schema.FastBackend, req.Choice.Backend)
	assert.NotEmpty(t, req.ID)

	// Feedback on the raw text joins the selection recorded under the refined text.
	require.NoError(t, e.Feedback("I would like to know SELECT * FROM orders", 4, "ok"))
	perf := e.Monitor().PerformanceByBackend()
	require.Contains(t, perf, schema.FastBackend)
	assert.Equal(t, []int{4}, perf[schema.FastBackend].Ratings)
}

func TestEngineRestoresThresholdFromLastCalibration(t *testing.T) {
	cfg := testConfig(t)
	store, err := monitor.NewJSONStore(cfg.MonitorPath)
	require.NoError(t, err)
	calibrated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendCalibration(schema.CalibrationEvent{Timestamp: calibrated.Add(-time.Hour), OldThreshold: 0.25, NewThreshold: 0.2}))
	require.NoError(t, store.AppendCalibration(schema.CalibrationEvent{Timestamp: calibrated, OldThreshold: 0.2, NewThreshold: 0.3}))

	e := newTestEngine(t, cfg)
	assert.InDelta(t, 0.3, e.Router().Threshold(), 1e-9)
	assert.True(t, calibrated.Equal(e.Router().LastCalibration()))
}

func TestEngineCalibrationClockStartsAtFirstSelection(t *testing.T) {
	cfg := testConfig(t)
	store, err := monitor.NewJSONStore(cfg.MonitorPath)
	require.NoError(t, err)
	first := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendSelection(schema.SelectionRecord{Timestamp: first, Query: "a", Complexity: 0.1, Backend: schema.FastBackend}))
	require.NoError(t, store.AppendSelection(schema.SelectionRecord{Timestamp: first.Add(time.Hour), Query: "b", Complexity: 0.4, Backend: schema.AccurateBackend}))

	e := newTestEngine(t, cfg)
	assert.InDelta(t, contract.DefaultThreshold, e.Router().Threshold(), 1e-9)
	assert.True(t, first.Equal(e.Router().LastCalibration()))
}

func TestEngineRefine(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	r := e.Refine("Could you please tell me the total sales")
	assert.Equal(t, "the total sales", r.Refined)
	assert.Greater(t, r.TokensBefore, r.TokensAfter)
}

func TestEngineCalibrateWithoutFeedback(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	_, applied, err := e.Calibrate()
	require.NoError(t, err)
	assert.False(t, applied)
	assert.InDelta(t, contract.DefaultThreshold, e.Router().Threshold(), 1e-9)
}

func TestEngineOpensPoolLazily(t *testing.T) {
	e := newTestEngine(t, testConfig(t))

	report := e.Stats(false)
	assert.Nil(t, report.Executor)
	require.NotNil(t, report.Complexity)
	assert.Empty(t, report.Recommendations)

	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)",
		"INSERT INTO orders (total) VALUES (10.5), (3.0)",
	} {
		_, _, err := e.Query(ctx, stmt)
		require.NoError(t, err)
	}
	rs, elapsed, err := e.Query(ctx, "SELECT total FROM orders ORDER BY id")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))

	report = e.Stats(false)
	require.NotNil(t, report.Executor)
	assert.EqualValues(t, 3, report.Executor.QueriesExecuted)
	assert.Equal(t, 2, report.Executor.Pool.MaxConnections)
}

func TestEngineStatsRecommendations(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonitorBackend = schema.NoneBackend
	cfg.Threshold = 0.45
	e := newTestEngine(t, cfg)

	var settings []string
	for _, rec := range e.Stats(true).Recommendations {
		settings = append(settings, rec.Setting)
	}
	assert.Contains(t, settings, "threshold")
	assert.Contains(t, settings, "monitor-backend")
}

func TestEngineAdvisor(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	ctx := context.Background()
	_, _, err := e.Query(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)")
	require.NoError(t, err)

	advisor, err := e.Advisor()
	require.NoError(t, err)
	advice, err := advisor.Advise(ctx, "SELECT * FROM users WHERE email = 'a@b.c'", true)
	require.NoError(t, err)
	assert.NotEmpty(t, advice.Plan)
	assert.Contains(t, advice.IndexHints, "CREATE INDEX IF NOT EXISTS idx_email ON users(email)")
}

func TestEngineRejectsBadMonitorBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonitorBackend = "redis"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
