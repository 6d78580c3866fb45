package iocache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache[int]("test", 10, time.Minute, nil)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[string]("test", 10, 5*time.Minute, nil)
	c.SetClock(clock.Now)

	c.Set("q", "rows")
	clock.Advance(5*time.Minute - time.Second)
	_, err := c.Lookup("q")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = c.Lookup("q")
	assert.True(t, errors.Is(err, ErrExpired))

	// Expired entries are removed lazily on access.
	assert.Equal(t, 0, c.Len())
	_, err = c.Lookup("q")
	assert.True(t, errors.Is(err, ErrMiss))

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 2, stats.Misses)
	assert.EqualValues(t, 1, stats.Expirations)
}

func TestTTLCacheSetRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[int]("test", 10, time.Minute, nil)
	c.SetClock(clock.Now)

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCacheStrictLRU(t *testing.T) {
	c := NewTTLCache[int]("test", 3, time.Hour, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Reading "a" makes "b" the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)
	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should still be cached", k)
	}
	assert.Equal(t, 3, c.Len())
	assert.EqualValues(t, 1, c.Stats().Evictions)
}

func TestTTLCacheNeverExceedsCapacity(t *testing.T) {
	c := NewTTLCache[int]("test", 5, time.Hour, nil)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := string(rune('a' + (g*200+i)%26))
				c.Set(key, i)
				_, _ = c.Get(key)
				assert.LessOrEqual(t, c.Len(), 5)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 5)
}

func TestTTLCacheDeleteAndClear(t *testing.T) {
	c := NewTTLCache[int]("test", 5, time.Hour, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "test", c.Name())
}

func TestIsReadOnly(t *testing.T) {
	tests := []struct {
		statement string
		want      bool
	}{
		{"SELECT * FROM orders", true},
		{"  select id from t", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x", false},
		{"EXPLAIN QUERY PLAN SELECT 1", true},
		{"EXPLAIN ANALYZE SELECT * FROM t", true},
		{"EXPLAIN ANALYZE DELETE FROM t", false},
		{"explain (analyze, buffers) UPDATE t SET a = 1", false},
		{"EXPLAIN INSERT INTO t VALUES (1)", true},
		{"PRAGMA table_info(orders)", true},
		{"PRAGMA journal_mode=WAL", false},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET a = 1", false},
		{"DELETE FROM t", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReadOnly(tt.statement))
		})
	}
}

func TestQueryKeyIsExactText(t *testing.T) {
	assert.Equal(t, QueryKey("SELECT 1"), QueryKey("SELECT 1"))
	assert.NotEqual(t, QueryKey("SELECT 1"), QueryKey("select 1"))
	assert.NotEqual(t, QueryKey("SELECT 1"), QueryKey("SELECT  1"))
	assert.Len(t, QueryKey("x"), 64)
}

func TestQueryCacheIgnoresMutations(t *testing.T) {
	q := NewQueryCache(10, time.Minute, nil)
	rs := schema.ResultSet{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}}

	assert.False(t, q.Set("DELETE FROM t", rs))
	_, ok := q.Get("DELETE FROM t")
	assert.False(t, ok)
	assert.Equal(t, 0, q.Stats().Entries)

	assert.True(t, q.Set("SELECT n FROM t", rs))
	got, ok := q.Get("SELECT n FROM t")
	require.True(t, ok)
	assert.Equal(t, rs, got)
}

func TestQueryCacheTTL(t *testing.T) {
	clock := newFakeClock()
	q := NewQueryCache(10, 300*time.Second, nil)
	q.SetClock(clock.Now)

	q.Set("SELECT 1", schema.ResultSet{Columns: []string{"1"}})
	clock.Advance(301 * time.Second)
	_, ok := q.Get("SELECT 1")
	assert.False(t, ok)
}

func TestSchemaCacheSentinel(t *testing.T) {
	s := NewSchemaCache(10, time.Hour, nil)

	_, ok := s.Tables()
	assert.False(t, ok)

	s.SetTables([]string{"customers", "orders"})
	s.SetColumns("orders", []schema.Column{{Name: "id", PrimaryKey: true}})

	tables, ok := s.Tables()
	require.True(t, ok)
	assert.Equal(t, []string{"customers", "orders"}, tables)

	cols, ok := s.Columns("orders")
	require.True(t, ok)
	assert.Equal(t, "id", cols[0].Name)

	_, ok = s.Columns("customers")
	assert.False(t, ok)

	s.Clear()
	_, ok = s.Tables()
	assert.False(t, ok)
}
