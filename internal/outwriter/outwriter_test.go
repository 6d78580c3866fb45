package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, mode schema.OutputMode) *contract.Config {
	t.Helper()
	return &contract.Config{
		Output:     mode,
		OutputFile: filepath.Join(t.TempDir(), "out"),
		Precision:  2,
		Width:      100,
	}
}

func readOutput(t *testing.T, cfg *contract.Config) string {
	t.Helper()
	content, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	return string(content)
}

func readCSV(t *testing.T, cfg *contract.Config) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(readOutput(t, cfg))).ReadAll()
	require.NoError(t, err)
	return records
}

func sampleRequest() schema.OptimizedRequest {
	return schema.OptimizedRequest{
		ID:           "req-1",
		Query:        "Could you please tell me the monthly trend",
		RefinedQuery: "the monthly trend",
		Choice: schema.BackendChoice{
			Backend:   schema.AccurateBackend,
			Score:     schema.ComplexityScore{Overall: 0.4, Domain: schema.ReportingDomain},
			Threshold: 0.25,
		},
		History:     []schema.Message{{Role: schema.UserRole, Content: "hi"}},
		Params:      schema.GenerationParams{Temperature: 0.28, TopP: 0.68, MaxTokens: 563},
		TokensSaved: 6,
	}
}

func TestWriteRequest(t *testing.T) {
	ow := NewOutWriter()

	cfg := testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteRequest(sampleRequest(), cfg, time.Millisecond))
	text := readOutput(t, cfg)
	assert.Contains(t, text, "req-1")
	assert.Contains(t, text, "accurate")
	assert.Contains(t, text, "0.40")
	assert.Contains(t, text, "Routed in 1ms")

	cfg = testConfig(t, schema.JSONOut)
	require.NoError(t, ow.WriteRequest(sampleRequest(), cfg, time.Millisecond))
	var decoded schema.OptimizedRequest
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &decoded))
	assert.Equal(t, sampleRequest(), decoded)

	cfg = testConfig(t, schema.CSVOut)
	require.NoError(t, ow.WriteRequest(sampleRequest(), cfg, time.Millisecond))
	records := readCSV(t, cfg)
	require.Len(t, records, 2)
	assert.Equal(t, "backend", records[0][3])
	assert.Equal(t, "accurate", records[1][3])
	assert.Equal(t, "563", records[1][9])
}

func TestWriteParquetIsRejected(t *testing.T) {
	cfg := testConfig(t, schema.ParquetOut)
	err := NewOutWriter().WriteTables([]string{"orders"}, cfg)
	assert.ErrorIs(t, err, ErrParquetOutput)
}

func TestWriteAnalysis(t *testing.T) {
	score := schema.ComplexityScore{
		Overall: 0.182,
		Dimensions: map[schema.Dimension]float64{
			schema.DimLength:        0.08,
			schema.DimPatterns:      0,
			schema.DimSQLComplexity: 0,
			schema.DimCognitiveLoad: 0.2,
		},
		Domain: schema.SQLDomain,
	}
	ow := NewOutWriter()

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, ow.WriteAnalysis("SELECT * FROM orders", score, cfg))
	records := readCSV(t, cfg)
	assert.Equal(t, []string{"query", "overall", "domain", "length", "patterns", "sql_complexity", "cognitive_load"}, records[0])
	assert.Equal(t, []string{"SELECT * FROM orders", "0.18", "sql", "0.08", "0.00", "0.00", "0.20"}, records[1])

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteAnalysis("SELECT * FROM orders", score, cfg))
	text := readOutput(t, cfg)
	assert.Contains(t, strings.ToLower(text), "cognitive_load")
	assert.Contains(t, text, "0.45") // pattern weight
}

func TestWriteCalibration(t *testing.T) {
	ow := NewOutWriter()
	cfg := testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteCalibration(schema.CalibrationEvent{}, false, 0.25, cfg))
	assert.Contains(t, readOutput(t, cfg), "Not enough feedback")

	ev := schema.CalibrationEvent{
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		OldThreshold: 0.25,
		NewThreshold: 0.2,
		AvgRatings:   map[schema.BackendKind]float64{schema.FastBackend: 2, schema.AccurateBackend: 4.5},
		SampleSizes:  map[schema.BackendKind]int{schema.FastBackend: 25, schema.AccurateBackend: 25},
	}
	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteCalibration(ev, true, 0.2, cfg))
	assert.Contains(t, readOutput(t, cfg), "Threshold moved from 0.25 to 0.20")

	cfg = testConfig(t, schema.JSONOut)
	require.NoError(t, ow.WriteCalibration(ev, true, 0.2, cfg))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &decoded))
	assert.Equal(t, true, decoded["applied"])
	assert.Contains(t, decoded, "event")
}

func TestWriteStats(t *testing.T) {
	report := schema.StatsReport{
		Threshold: 0.25,
		Performance: map[schema.BackendKind]schema.BackendPerformance{
			schema.FastBackend: {Count: 2, Ratings: []int{2, 4}, AvgRating: 3},
		},
		Executor: &schema.ExecutorStats{
			CacheHits: 1, CacheMisses: 1, HitRate: 0.5,
			Caches: []schema.CacheStats{{Name: "query", Entries: 1, Capacity: 1000, TTL: 5 * time.Minute, Hits: 1, Misses: 1}},
			Pool:   schema.PoolStatus{MaxConnections: 10},
		},
		Recommendations: []schema.Recommendation{{Area: "routing", Setting: "threshold", Current: "0.45", Recommended: "0.25", Reason: "too high"}},
	}
	ow := NewOutWriter()

	cfg := testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteStats(report, cfg))
	text := readOutput(t, cfg)
	assert.Contains(t, text, "Routing threshold: 0.25 (last calibrated: never)")
	assert.Contains(t, text, "query")
	assert.Contains(t, text, "too high")
	assert.Contains(t, text, "hit rate 50.00%")

	cfg = testConfig(t, schema.CSVOut)
	require.NoError(t, ow.WriteStats(report, cfg))
	records := readCSV(t, cfg)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"fast", "2", "3.00", "0.00", "0.00"}, records[1])
	assert.Equal(t, "accurate", records[2][0])
}

func TestWriteHistoryLimit(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	log := schema.MetricsLog{
		Selections: []schema.SelectionRecord{
			{Timestamp: ts, Query: "old", Backend: schema.FastBackend},
			{Timestamp: ts, Query: "new", Backend: schema.AccurateBackend},
		},
		Feedback: []schema.FeedbackRecord{{Timestamp: ts, Query: "new", Rating: 5}},
	}

	cfg := testConfig(t, schema.JSONOut)
	cfg.Limit = 1
	require.NoError(t, NewOutWriter().WriteHistory(log, cfg))
	var decoded schema.MetricsLog
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &decoded))
	require.Len(t, decoded.Selections, 1)
	assert.Equal(t, "new", decoded.Selections[0].Query)
	assert.Len(t, decoded.Feedback, 1)

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, NewOutWriter().WriteHistory(log, cfg))
	assert.Contains(t, readOutput(t, cfg), "2 selections, 1 feedback, 0 calibrations")
}

func TestWriteResultSet(t *testing.T) {
	rs := schema.ResultSet{
		Columns: []string{"id", "name", "note"},
		Rows:    [][]any{{int64(1), "Ann", nil}, {int64(2), []byte("Bob"), "vip"}},
	}
	ow := NewOutWriter()

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, ow.WriteResultSet(rs, cfg, time.Millisecond))
	assert.Equal(t, [][]string{{"id", "name", "note"}, {"1", "Ann", "NULL"}, {"2", "Bob", "vip"}}, readCSV(t, cfg))

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteResultSet(rs, cfg, time.Millisecond))
	assert.Contains(t, readOutput(t, cfg), "2 rows in")

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, ow.WriteResultSet(schema.ResultSet{RowsAffected: 3}, cfg, time.Millisecond))
	assert.Contains(t, readOutput(t, cfg), "3 rows affected")
}

func TestWriteColumnsAndTables(t *testing.T) {
	def := "'west'"
	cols := []schema.Column{
		{Position: 0, Name: "id", Type: "INTEGER", PrimaryKey: true},
		{Position: 1, Name: "region", Type: "TEXT", Default: &def},
	}
	ow := NewOutWriter()

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, ow.WriteColumns("customers", cols, cfg))
	records := readCSV(t, cfg)
	assert.Equal(t, []string{"1", "region", "TEXT", "false", "'west'", "false"}, records[2])

	cfg = testConfig(t, schema.JSONOut)
	require.NoError(t, ow.WriteTables([]string{"customers", "orders"}, cfg))
	var tables []string
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &tables))
	assert.Equal(t, []string{"customers", "orders"}, tables)
}

func TestWriteAdvice(t *testing.T) {
	advice := schema.Advice{
		Statement: "SELECT * FROM orders",
		Optimizations: []schema.QueryOptimization{{
			Type: "missing_limit", Description: "add a limit", OriginalQuery: "SELECT * FROM orders",
			OptimizedQuery: "SELECT * FROM orders LIMIT 100", EstimatedImprovement: "Minor",
		}},
		IndexHints: []string{"CREATE INDEX IF NOT EXISTS idx_id ON orders(id)"},
		Plan:       []string{"2 | 0 | 0 | SCAN orders"},
	}
	cfg := testConfig(t, schema.TextOut)
	require.NoError(t, NewOutWriter().WriteAdvice(advice, cfg))
	text := readOutput(t, cfg)
	assert.Contains(t, text, "missing_limit")
	assert.Contains(t, text, "Index hint: CREATE INDEX")
	assert.Contains(t, text, "SCAN orders")
}

func TestGetMaxTableTextWidth(t *testing.T) {
	assert.Equal(t, 70, GetMaxTableTextWidth(&contract.Config{Width: 100}))
	assert.Equal(t, 20, GetMaxTableTextWidth(&contract.Config{Width: 30}))
	assert.Equal(t, 120, GetMaxTableTextWidth(&contract.Config{Width: 500}))
}

func TestFloatFormatter(t *testing.T) {
	tests := []struct {
		precision int
		value     float64
		expected  string
	}{
		{1, 0.18234, "0.2"},
		{2, 0.18234, "0.18"},
		{4, 0.18234, "0.1823"},
		{2, -0.5, "-0.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, floatFormatter(tt.precision)(tt.value))
	}
}

func TestWriteJSONIndents(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, writeJSON(&buf, map[string]any{"backend": "fast", "score": 0.5}))
	assert.Equal(t, "{\n  \"backend\": \"fast\",\n  \"score\": 0.5\n}\n", buf.String())

	err := writeJSON(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON")
}

func TestWriteCSVQuotesStatements(t *testing.T) {
	var buf strings.Builder
	err := writeCSV(&buf, []string{"query", "backend"}, [][]string{{"SELECT a, b FROM t", "fast"}})
	require.NoError(t, err)
	assert.Equal(t, "query,backend\n\"SELECT a, b FROM t\",fast\n", buf.String())
}

func TestWriteWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, writeWithFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("routed"))
		return err
	}, "Wrote test"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "routed", string(content))

	err = writeWithFile(path, func(io.Writer) error { return assert.AnError }, "Wrote test")
	assert.Equal(t, assert.AnError, err)

	err = writeWithFile("/nonexistent/dir/out.txt", func(io.Writer) error { return nil }, "Wrote test")
	assert.Error(t, err)
}
