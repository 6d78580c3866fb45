// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"

	"github.com/huangsam/querymancer/schema"
)

// RecordStore defines the durable side of the performance monitor.
// This allows the persistence layer to be mocked for testing.
type RecordStore interface {
	// Load returns everything persisted so far, in append order.
	Load() (schema.MetricsLog, error)

	// AppendSelection persists one routing decision.
	AppendSelection(rec schema.SelectionRecord) error

	// AppendFeedback persists one user rating.
	AppendFeedback(rec schema.FeedbackRecord) error

	// AppendCalibration persists one calibration event.
	AppendCalibration(ev schema.CalibrationEvent) error

	// GetStatus returns status information about the store.
	GetStatus() (schema.MonitorStatus, error)

	// Close closes the underlying connection or file handle.
	Close() error
}

// Monitor is the view of the performance monitor used by the router and calibrator.
type Monitor interface {
	RecordSelection(query string, complexity float64, backend schema.BackendKind) error
	RecordFeedback(query string, rating int, comment string) error
	RecordCalibration(ev schema.CalibrationEvent) error
	PerformanceByBackend() map[schema.BackendKind]schema.BackendPerformance
	ComplexityDistribution() map[schema.BackendKind][]float64
}

// Executor runs statements through the caches and the connection pool.
type Executor interface {
	// Query runs a statement. Read statements are served from and stored in the result cache.
	Query(ctx context.Context, statement string) (schema.ResultSet, error)

	// AllTables lists the user tables of the store.
	AllTables(ctx context.Context) ([]string, error)

	// TableSchema describes the columns of a table.
	TableSchema(ctx context.Context, table string) ([]schema.Column, error)

	// Stats returns cache and execution counters.
	Stats() schema.ExecutorStats

	// ClearCaches drops every cached result and schema entry.
	ClearCaches()
}
