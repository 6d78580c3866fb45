// Package main provides a performance benchmarking tool for the querymancer caches.
// It measures the complexity analyzer and the cached SQL executor in-process,
// running each workload multiple times, treating the first run as cold and averaging the rest as warm,
// generating CSV output for performance analysis and documentation.
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for the scratch SQLite database (defaults to a temp dir)
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/querymancer/core"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/internal/iocache"
	"github.com/huangsam/querymancer/schema"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Workload    string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Rows        int
	NoCacheRuns int
	CacheRuns   int
	Queries     []string
	Statements  []string
}

func main() {
	workDir := ""
	if len(os.Args) == 2 {
		workDir = os.Args[1]
	} else {
		dir, err := os.MkdirTemp("", "querymancer-bench-*")
		if err != nil {
			fmt.Printf("Failed to create work dir: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		workDir = dir
	}

	config := BenchmarkConfig{
		WorkDir:     workDir,
		Rows:        20000,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Queries: []string{
			"SELECT * FROM orders",
			"show me the trend and correlation between monthly revenue and customer segment using a window function ranking",
			"Could you please tell me which customers churned last quarter and why",
			"compare the distribution of basket sizes before and after the promotion",
		},
		Statements: []string{
			"SELECT region, COUNT(*), SUM(total) FROM orders GROUP BY region",
			"SELECT * FROM orders WHERE total > 500 ORDER BY total DESC LIMIT 50",
			"SELECT customer_id, AVG(total) FROM orders GROUP BY customer_id HAVING AVG(total) > 250",
		},
	}

	results := []BenchmarkResult{benchmarkAnalyzer(config)}
	sqlResult, err := benchmarkExecutor(config)
	if err != nil {
		fmt.Printf("SQL benchmark failed: %v\n", err)
		os.Exit(1)
	}
	results = append(results, sqlResult)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// benchmarkAnalyzer scores every query repeatedly, with and without the complexity cache.
func benchmarkAnalyzer(config BenchmarkConfig) BenchmarkResult {
	fmt.Printf("Benchmarking analyzer (%d queries)\n", len(config.Queries))
	const rounds = 2000
	work := func(a *core.Analyzer) {
		for range rounds {
			for _, q := range config.Queries {
				a.Analyze(q)
			}
		}
	}

	noCache := core.NewAnalyzer(nil, nil)
	_, noCacheAvg := runPhase(config.NoCacheRuns, "No-cache", func() error { work(noCache); return nil })

	cached := core.NewAnalyzer(nil, iocache.NewTTLCache[schema.ComplexityScore](core.ComplexityCacheName, 100, time.Hour, nil))
	coldTime, warmAvg := runPhase(config.CacheRuns, "Cache", func() error { work(cached); return nil })

	return newResult("analyze", noCacheAvg, coldTime, warmAvg)
}

// benchmarkExecutor runs aggregate statements on a seeded SQLite table.
// The no-cache phase uses a TTL short enough that every lookup misses.
func benchmarkExecutor(config BenchmarkConfig) (BenchmarkResult, error) {
	fmt.Printf("Benchmarking executor (%d rows, %d statements)\n", config.Rows, len(config.Statements))
	pool, err := dbpool.Open(dbpool.Options{
		Backend:        schema.SQLiteBackend,
		ConnStr:        filepath.Join(config.WorkDir, "bench.db"),
		MaxConnections: 4,
		AcquireTimeout: 10 * time.Second,
	})
	if err != nil {
		return BenchmarkResult{}, err
	}
	defer func() { _ = pool.Close() }()

	ctx := context.Background()
	if err := seed(ctx, pool, config.Rows); err != nil {
		return BenchmarkResult{}, err
	}

	work := func(exec *iocache.CachedExecutor) error {
		for _, stmt := range config.Statements {
			if _, err := exec.Query(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
	newExecutor := func(ttl time.Duration) *iocache.CachedExecutor {
		return iocache.NewCachedExecutor(pool,
			iocache.NewQueryCache(100, ttl, nil),
			iocache.NewSchemaCache(100, ttl, nil),
			nil)
	}

	noCache := newExecutor(time.Nanosecond)
	_, noCacheAvg := runPhase(config.NoCacheRuns, "No-cache", func() error { return work(noCache) })

	cached := newExecutor(time.Hour)
	coldTime, warmAvg := runPhase(config.CacheRuns, "Cache", func() error { return work(cached) })

	return newResult("sql", noCacheAvg, coldTime, warmAvg), nil
}

// seed creates the orders table with deterministic rows.
func seed(ctx context.Context, pool *dbpool.Pool, rows int) error {
	return pool.WithConn(ctx, func(c *dbpool.Conn) error {
		if _, err := c.Exec(ctx, "DROP TABLE IF EXISTS orders"); err != nil {
			return err
		}
		if _, err := c.Exec(ctx, "CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER, region TEXT, total REAL)"); err != nil {
			return err
		}
		regions := []string{"north", "south", "east", "west"}
		const batch = 500
		for start := 0; start < rows; start += batch {
			var values []string
			for i := start; i < min(start+batch, rows); i++ {
				values = append(values, fmt.Sprintf("(%d, '%s', %d.%02d)", i%977, regions[i%len(regions)], (i*37)%1000, i%100))
			}
			stmt := "INSERT INTO orders (customer_id, region, total) VALUES " + strings.Join(values, ", ")
			if _, err := c.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// runPhase runs fn numRuns times and returns the first time and the average of the rest.
func runPhase(numRuns int, phaseName string, fn func() error) (coldTime float64, avgTime string) {
	fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
	var times []float64
	for range numRuns {
		start := time.Now()
		if err := fn(); err != nil {
			fmt.Printf("  Run failed: %v\n", err)
			continue
		}
		times = append(times, time.Since(start).Seconds())
	}
	if len(times) == 0 {
		return 0, "FAILED"
	}
	coldTime = times[0]
	warm := times
	if len(times) > 1 {
		warm = times[1:]
	}
	var sum float64
	for _, t := range warm {
		sum += t
	}
	return coldTime, fmt.Sprintf("%.6fs", sum/float64(len(warm)))
}

func newResult(workload, noCacheAvg string, coldTime float64, warmAvg string) BenchmarkResult {
	coldTimeStr := "FAILED"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.6fs", coldTime)
	}
	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)
	return BenchmarkResult{
		Workload:    workload,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("querymancer_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"workload", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		if err := writer.Write([]string{result.Workload, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s: No-cache: %s, Cold: %s, Warm: %s\n", result.Workload, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
