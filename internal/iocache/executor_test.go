package iocache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/dbpool"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *CachedExecutor {
	t.Helper()
	pool, err := dbpool.Open(dbpool.Options{
		Backend:        schema.SQLiteBackend,
		ConnStr:        filepath.Join(t.TempDir(), "shop.db"),
		MaxConnections: 4,
		AcquireTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	exec := NewCachedExecutor(pool, NewQueryCache(100, time.Minute, nil), NewSchemaCache(100, time.Hour, nil), nil)
	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT DEFAULT 'west')",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER, total REAL)",
		"INSERT INTO customers (name) VALUES ('Ada'), ('Grace')",
		"INSERT INTO orders (customer_id, total) VALUES (1, 10.5), (2, 99.0), (1, 5.25)",
	} {
		_, err := exec.Query(ctx, stmt)
		require.NoError(t, err)
	}
	exec.ClearCaches()
	return exec
}

func TestExecutorCachesReads(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()
	before := exec.Stats().QueriesExecuted

	rs, err := exec.Query(ctx, "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 3)

	again, err := exec.Query(ctx, "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, rs, again)

	stats := exec.Stats()
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.EqualValues(t, 1, stats.CacheMisses)
	assert.Equal(t, before+1, stats.QueriesExecuted)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestExecutorMutationsBypassCache(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	_, err := exec.Query(ctx, "SELECT COUNT(*) FROM orders")
	require.NoError(t, err)

	res, err := exec.Query(ctx, "INSERT INTO orders (customer_id, total) VALUES (2, 1.0)")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RowsAffected)
	assert.Equal(t, 0, exec.Stats().Caches[0].Entries, "mutation must not populate and must clear cached reads")

	rs, err := exec.Query(ctx, "SELECT COUNT(*) FROM orders")
	require.NoError(t, err)
	assert.EqualValues(t, 4, rs.Rows[0][0])
}

func TestExecutorStoreError(t *testing.T) {
	exec := newTestExecutor(t)
	_, err := exec.Query(context.Background(), "SELECT * FROM nowhere")

	var storeErr *contract.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "SELECT * FROM nowhere", storeErr.Statement)
	assert.Equal(t, 0, exec.Stats().Caches[0].Entries)
}

func TestExecutorConcurrentReads(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := exec.Query(ctx, "SELECT name FROM customers ORDER BY id")
			if assert.NoError(t, err) {
				assert.Equal(t, "Ada", rs.Rows[0][0])
			}
		}()
	}
	wg.Wait()

	stats := exec.Stats()
	assert.EqualValues(t, 16, stats.CacheHits+stats.CacheMisses)
	assert.Equal(t, 0, stats.Pool.InUse)
}

func TestExecutorAllTables(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	tables, err := exec.AllTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, tables)

	_, err = exec.Query(ctx, "INSERT INTO orders (customer_id, total) VALUES (1, 2.0)")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.Stats().Caches[1].Entries, "data changes keep table metadata")

	_, err = exec.Query(ctx, "CREATE TABLE products (id INTEGER)")
	require.NoError(t, err)

	tables, err = exec.AllTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders", "products"}, tables)
}

func TestExecutorTableNamedLikeTablesKey(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()
	_, err := exec.Query(ctx, "CREATE TABLE _tables (id INTEGER, label TEXT)")
	require.NoError(t, err)

	tables, err := exec.AllTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "_tables")

	cols, err := exec.TableSchema(ctx, "_tables")
	require.NoError(t, err)
	assert.Len(t, cols, 2)

	tables, err = exec.AllTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"_tables", "customers", "orders"}, tables)
}

func TestExecutorReturnsReturningRows(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	rs, err := exec.Query(ctx, "INSERT INTO orders (customer_id, total) VALUES (2, 1.0) RETURNING id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rs.Columns)
	require.Len(t, rs.Rows, 1)
	assert.EqualValues(t, 4, rs.Rows[0][0])
	assert.EqualValues(t, 1, rs.RowsAffected)
	assert.Equal(t, 0, exec.Stats().Caches[0].Entries, "statements with RETURNING are never cached")

	rs, err = exec.Query(ctx, "DELETE FROM orders WHERE customer_id = 1 RETURNING id")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)
	assert.EqualValues(t, 2, rs.RowsAffected)

	count, err := exec.Query(ctx, "SELECT COUNT(*) FROM orders")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count.Rows[0][0])
}

func TestExecutorInvalidatesOnDDL(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	rs, err := exec.Query(ctx, "SELECT * FROM customers")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "region"}, rs.Columns)
	cols, err := exec.TableSchema(ctx, "customers")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	// A statement that touches no rows still drops cached reads.
	_, err = exec.Query(ctx, "DELETE FROM customers WHERE id = -1")
	require.NoError(t, err)
	assert.Equal(t, 0, exec.Stats().Caches[0].Entries)

	_, err = exec.Query(ctx, "SELECT * FROM customers")
	require.NoError(t, err)
	res, err := exec.Query(ctx, "ALTER TABLE customers ADD COLUMN email TEXT")
	require.NoError(t, err)
	assert.Zero(t, res.RowsAffected)

	rs, err = exec.Query(ctx, "SELECT * FROM customers")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "region", "email"}, rs.Columns)

	cols, err = exec.TableSchema(ctx, "customers")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "email", cols[3].Name)
}

func TestExecutorSharedReadIgnoresCallerCancellation(t *testing.T) {
	exec := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rs, err := exec.Query(ctx, "SELECT name FROM customers ORDER BY id")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)
}

func TestExecutorTableSchema(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	cols, err := exec.TableSchema(ctx, "customers")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.Equal(t, "name", cols[1].Name)
	assert.True(t, cols[1].NotNull)
	require.NotNil(t, cols[2].Default)
	assert.Equal(t, "'west'", *cols[2].Default)

	cached, ok := exec.schemas.Columns("customers")
	require.True(t, ok)
	assert.Equal(t, cols, cached)
}

func TestExecutorTableSchemaErrors(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := context.Background()

	_, err := exec.TableSchema(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = exec.TableSchema(ctx, "orders; DROP TABLE orders")
	assert.Error(t, err)
}

func TestMockExecutor(t *testing.T) {
	m := &MockExecutor{}
	ctx := context.Background()
	m.On("AllTables", ctx).Return([]string{"orders"}, nil)
	m.On("ClearCaches").Return()

	var exec contract.Executor = m
	tables, err := exec.AllTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)
	exec.ClearCaches()
	m.AssertExpectations(t)
}
