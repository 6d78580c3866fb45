package iocache

import (
	"context"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/mock"
)

// MockExecutor is a mock implementation of Executor for testing.
type MockExecutor struct {
	mock.Mock
}

var _ contract.Executor = &MockExecutor{} // Compile-time check

// Query implements the Executor interface.
func (m *MockExecutor) Query(ctx context.Context, statement string) (schema.ResultSet, error) {
	args := m.Called(ctx, statement)
	rs, _ := args.Get(0).(schema.ResultSet)
	return rs, args.Error(1)
}

// AllTables implements the Executor interface.
func (m *MockExecutor) AllTables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tables, _ := args.Get(0).([]string)
	return tables, args.Error(1)
}

// TableSchema implements the Executor interface.
func (m *MockExecutor) TableSchema(ctx context.Context, table string) ([]schema.Column, error) {
	args := m.Called(ctx, table)
	cols, _ := args.Get(0).([]schema.Column)
	return cols, args.Error(1)
}

// Stats implements the Executor interface.
func (m *MockExecutor) Stats() schema.ExecutorStats {
	args := m.Called()
	stats, _ := args.Get(0).(schema.ExecutorStats)
	return stats
}

// ClearCaches implements the Executor interface.
func (m *MockExecutor) ClearCaches() {
	m.Called()
}
