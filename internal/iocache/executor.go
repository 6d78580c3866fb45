package iocache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownTable is returned by TableSchema when the store has no such table.
var ErrUnknownTable = errors.New("unknown table")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CachedExecutor runs statements through the result and schema caches,
// falling back to a pooled connection on a miss. Concurrent misses for the
// same statement share a single store round trip.
type CachedExecutor struct {
	pool    *dbpool.Pool
	results *QueryCache
	schemas *SchemaCache
	metrics *telemetry.Metrics
	group   singleflight.Group

	mu        sync.Mutex
	hits      int64
	misses    int64
	executed  int64
	totalTime time.Duration
}

var _ contract.Executor = &CachedExecutor{} // Compile-time check

// NewCachedExecutor wires a pool to its caches.
func NewCachedExecutor(pool *dbpool.Pool, results *QueryCache, schemas *SchemaCache, metrics *telemetry.Metrics) *CachedExecutor {
	return &CachedExecutor{
		pool:    pool,
		results: results,
		schemas: schemas,
		metrics: metrics,
	}
}

// Query runs a statement. Reads are answered from the result cache when a
// live entry exists. Other statements always reach the store and are never
// cached; any that can change data clear cached reads, and DDL also clears
// cached table metadata.
func (e *CachedExecutor) Query(ctx context.Context, statement string) (schema.ResultSet, error) {
	if !IsReadOnly(statement) {
		rows := returnsRows(statement)
		rs, err := e.run(ctx, statement, rows)
		if err != nil {
			return schema.ResultSet{}, err
		}
		switch {
		case rows && !isInspection(statement):
			rs.RowsAffected = int64(len(rs.Rows))
		case isSchemaChange(statement):
			// Some drivers report the previous statement's change count for DDL.
			rs.RowsAffected = 0
		}
		e.invalidate(statement)
		return rs, nil
	}

	if rs, ok := e.results.Get(statement); ok {
		e.mu.Lock()
		e.hits++
		e.mu.Unlock()
		return rs, nil
	}

	e.mu.Lock()
	e.misses++
	e.mu.Unlock()

	v, err, _ := e.group.Do(QueryKey(statement), func() (any, error) {
		rs, err := e.run(context.WithoutCancel(ctx), statement, true)
		if err != nil {
			return nil, err
		}
		e.results.Set(statement, rs)
		return rs, nil
	})
	if err != nil {
		return schema.ResultSet{}, err
	}
	return v.(schema.ResultSet), nil
}

// AllTables lists user tables, cached under the sentinel key.
func (e *CachedExecutor) AllTables(ctx context.Context) ([]string, error) {
	if tables, ok := e.schemas.Tables(); ok {
		return tables, nil
	}

	v, err, _ := e.group.Do("schema:"+TablesKey, func() (any, error) {
		rs, err := e.run(context.WithoutCancel(ctx), listTablesQuery(e.pool.Backend()), true)
		if err != nil {
			return nil, err
		}
		tables := make([]string, 0, len(rs.Rows))
		for _, row := range rs.Rows {
			if len(row) > 0 {
				tables = append(tables, asString(row[0]))
			}
		}
		e.schemas.SetTables(tables)
		return tables, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// TableSchema describes the columns of table, cached by table name.
func (e *CachedExecutor) TableSchema(ctx context.Context, table string) ([]schema.Column, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if cols, ok := e.schemas.Columns(table); ok {
		return cols, nil
	}

	v, err, _ := e.group.Do("schema:"+table, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		stmt, args := describeTableQuery(e.pool.Backend(), table)
		var rs schema.ResultSet
		err := e.timed(func() error {
			return e.pool.WithConn(ctx, func(c *dbpool.Conn) error {
				var err error
				rs, err = c.Query(ctx, stmt, args...)
				return err
			})
		})
		if err != nil {
			return nil, err
		}
		if len(rs.Rows) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
		}
		cols := columnsFromRows(e.pool.Backend(), rs)
		e.schemas.SetColumns(table, cols)
		return cols, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]schema.Column), nil
}

// Stats returns cache and execution counters.
func (e *CachedExecutor) Stats() schema.ExecutorStats {
	e.mu.Lock()
	stats := schema.ExecutorStats{
		CacheHits:       e.hits,
		CacheMisses:     e.misses,
		QueriesExecuted: e.executed,
	}
	if e.executed > 0 {
		stats.AvgQueryTime = e.totalTime / time.Duration(e.executed)
	}
	e.mu.Unlock()

	if total := stats.CacheHits + stats.CacheMisses; total > 0 {
		stats.HitRate = float64(stats.CacheHits) / float64(total)
	}
	stats.Caches = []schema.CacheStats{e.results.Stats(), e.schemas.Stats()}
	stats.Pool = e.pool.Status()
	return stats
}

// invalidate drops cached entries a successful uncacheable statement may have made stale.
func (e *CachedExecutor) invalidate(statement string) {
	if isInspection(statement) {
		return
	}
	e.results.Clear()
	if isSchemaChange(statement) {
		e.schemas.Clear()
	}
}

// ClearCaches drops every cached result and schema entry.
func (e *CachedExecutor) ClearCaches() {
	e.results.Clear()
	e.schemas.Clear()
}

// Pool returns the underlying connection pool.
func (e *CachedExecutor) Pool() *dbpool.Pool { return e.pool }

// run executes a statement on a pooled connection, collecting rows when withRows is set.
func (e *CachedExecutor) run(ctx context.Context, statement string, withRows bool) (schema.ResultSet, error) {
	var rs schema.ResultSet
	err := e.timed(func() error {
		return e.pool.WithConn(ctx, func(c *dbpool.Conn) error {
			var err error
			if withRows {
				rs, err = c.Query(ctx, statement)
			} else {
				rs, err = c.Exec(ctx, statement)
			}
			return err
		})
	})
	return rs, err
}

// timed runs fn and folds its duration into the running average.
func (e *CachedExecutor) timed(fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.executed++
	e.totalTime += elapsed
	e.mu.Unlock()
	e.metrics.QueryExecuted(elapsed)
	return nil
}

func listTablesQuery(backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
	case schema.PostgreSQLBackend:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name"
	default: // SQLite
		return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}
}

func describeTableQuery(backend schema.DatabaseBackend, table string) (string, []any) {
	switch backend {
	case schema.MySQLBackend:
		return `SELECT ordinal_position, column_name, column_type, is_nullable, column_default, column_key
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`, []any{table}
	case schema.PostgreSQLBackend:
		return `SELECT c.ordinal_position, c.column_name, c.data_type, c.is_nullable, c.column_default,
				EXISTS (
					SELECT 1 FROM information_schema.table_constraints tc
					JOIN information_schema.key_column_usage k
						ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
					WHERE tc.constraint_type = 'PRIMARY KEY'
						AND tc.table_schema = c.table_schema
						AND tc.table_name = c.table_name
						AND k.column_name = c.column_name
				) AS pk
			FROM information_schema.columns c
			WHERE c.table_schema = current_schema() AND c.table_name = $1
			ORDER BY c.ordinal_position`, []any{table}
	default: // SQLite
		// Table names are validated, so quoting is enough here.
		return fmt.Sprintf(`PRAGMA table_info("%s")`, table), nil
	}
}

// columnsFromRows maps the backend-specific describe output to columns.
func columnsFromRows(backend schema.DatabaseBackend, rs schema.ResultSet) []schema.Column {
	cols := make([]schema.Column, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) < 6 {
			continue
		}
		col := schema.Column{
			Position: int(asInt64(row[0])),
			Name:     asString(row[1]),
			Type:     asString(row[2]),
		}
		if row[4] != nil {
			def := asString(row[4])
			col.Default = &def
		}
		switch backend {
		case schema.MySQLBackend:
			col.NotNull = strings.EqualFold(asString(row[3]), "NO")
			col.PrimaryKey = asString(row[5]) == "PRI"
		case schema.PostgreSQLBackend:
			col.NotNull = strings.EqualFold(asString(row[3]), "NO")
			col.PrimaryKey = asBool(row[5])
		default: // SQLite: cid, name, type, notnull, dflt_value, pk
			col.NotNull = asInt64(row[3]) != 0
			col.PrimaryKey = asInt64(row[5]) > 0
		}
		cols = append(cols, col)
	}
	return cols
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		n, _ := strconv.ParseInt(strings.TrimSpace(asString(v)), 10, 64)
		return n
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	default:
		return asInt64(v) != 0
	}
}
