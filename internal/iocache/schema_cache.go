package iocache

import (
	"time"

	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// SchemaCacheName labels the metadata cache in stats and metrics.
const SchemaCacheName = "schema"

// TablesKey is the key under which the table list is cached. It starts with
// a NUL byte so no table name can collide with it.
const TablesKey = "\x00tables"

// schemaEntry is either a column list or, under TablesKey, the table names.
type schemaEntry struct {
	columns []schema.Column
	tables  []string
}

// SchemaCache holds table metadata, which changes far less often than data.
type SchemaCache struct {
	cache *TTLCache[schemaEntry]
}

// NewSchemaCache creates a metadata cache.
func NewSchemaCache(capacity int, ttl time.Duration, metrics *telemetry.Metrics) *SchemaCache {
	return &SchemaCache{cache: NewTTLCache[schemaEntry](SchemaCacheName, capacity, ttl, metrics)}
}

// Tables returns the cached table list.
func (s *SchemaCache) Tables() ([]string, bool) {
	e, ok := s.cache.Get(TablesKey)
	if !ok {
		return nil, false
	}
	return e.tables, true
}

// SetTables caches the table list.
func (s *SchemaCache) SetTables(tables []string) {
	s.cache.Set(TablesKey, schemaEntry{tables: tables})
}

// Columns returns the cached columns of a table.
func (s *SchemaCache) Columns(table string) ([]schema.Column, bool) {
	e, ok := s.cache.Get(table)
	if !ok {
		return nil, false
	}
	return e.columns, true
}

// SetColumns caches the columns of a table.
func (s *SchemaCache) SetColumns(table string, columns []schema.Column) {
	s.cache.Set(table, schemaEntry{columns: columns})
}

// Clear drops all cached metadata.
func (s *SchemaCache) Clear() { s.cache.Clear() }

// Stats returns the metadata cache counters.
func (s *SchemaCache) Stats() schema.CacheStats { return s.cache.Stats() }
