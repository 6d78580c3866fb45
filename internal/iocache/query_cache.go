package iocache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// QueryCacheName labels the result cache in stats and metrics.
const QueryCacheName = "query"

var (
	writeInCTE     = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE)\b`)
	explainAnalyze = regexp.MustCompile(`(?i)^\s*EXPLAIN\s+(\([^)]*\bANALYZE\b|ANALYZE\b)`)
	returningRows  = regexp.MustCompile(`(?i)\bRETURNING\b`)
)

// IsReadOnly reports whether a statement is a read that may be cached.
// Only the leading keyword is inspected; no SQL parsing is done.
func IsReadOnly(statement string) bool {
	keyword := leadingKeyword(statement)
	switch {
	case keyword == "":
		return false
	case strings.HasPrefix(keyword, "SELECT"):
		return true
	case strings.HasPrefix(keyword, "EXPLAIN"):
		// EXPLAIN ANALYZE executes the statement it plans.
		return !explainAnalyze.MatchString(statement) || !writeInCTE.MatchString(statement)
	case strings.HasPrefix(keyword, "PRAGMA"):
		// PRAGMA name=value changes connection state.
		return !strings.Contains(statement, "=")
	case keyword == "WITH":
		return !writeInCTE.MatchString(statement)
	default:
		return false
	}
}

// returnsRows reports whether an uncacheable statement produces a result set:
// DML with RETURNING, or MySQL SHOW and DESCRIBE.
func returnsRows(statement string) bool {
	switch leadingKeyword(statement) {
	case "SHOW", "DESCRIBE", "DESC":
		return true
	}
	return returningRows.MatchString(statement)
}

// isInspection reports whether an uncacheable statement only reads metadata.
func isInspection(statement string) bool {
	switch leadingKeyword(statement) {
	case "SHOW", "DESCRIBE", "DESC":
		return true
	}
	return false
}

// isSchemaChange reports whether a statement is DDL that invalidates table metadata.
func isSchemaChange(statement string) bool {
	switch leadingKeyword(statement) {
	case "CREATE", "ALTER", "DROP", "RENAME", "TRUNCATE":
		return true
	}
	return false
}

// leadingKeyword is the upper-cased first word of a statement, without opening parentheses.
func leadingKeyword(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimLeft(fields[0], "("))
}

// QueryKey is the cache key of a statement: the SHA-256 of its exact text.
// Differently formatted but equivalent statements get different keys.
func QueryKey(statement string) string {
	sum := sha256.Sum256([]byte(statement))
	return hex.EncodeToString(sum[:])
}

// QueryCache holds result sets of read statements.
// Cached result sets are shared and must be treated as read-only.
type QueryCache struct {
	cache *TTLCache[schema.ResultSet]
}

// NewQueryCache creates a result cache.
func NewQueryCache(capacity int, ttl time.Duration, metrics *telemetry.Metrics) *QueryCache {
	return &QueryCache{cache: NewTTLCache[schema.ResultSet](QueryCacheName, capacity, ttl, metrics)}
}

// Get returns the cached rows of a read statement.
func (q *QueryCache) Get(statement string) (schema.ResultSet, bool) {
	if !IsReadOnly(statement) {
		return schema.ResultSet{}, false
	}
	return q.cache.Get(QueryKey(statement))
}

// Set caches the rows of a read statement. Mutating statements are ignored.
func (q *QueryCache) Set(statement string, rs schema.ResultSet) bool {
	if !IsReadOnly(statement) {
		return false
	}
	q.cache.Set(QueryKey(statement), rs)
	return true
}

// Clear drops every cached result.
func (q *QueryCache) Clear() { q.cache.Clear() }

// Stats returns the result cache counters.
func (q *QueryCache) Stats() schema.CacheStats { return q.cache.Stats() }

// SetClock replaces the time source. Used by tests.
func (q *QueryCache) SetClock(now func() time.Time) { q.cache.SetClock(now) }
