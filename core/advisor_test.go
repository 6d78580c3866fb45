package core

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/iocache"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func optimizationTypes(opts []schema.QueryOptimization) []string {
	var out []string
	for _, o := range opts {
		out = append(out, o.Type)
	}
	return out
}

func TestAdvisorStatementRules(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		expected  []string
	}{
		{"select star without limit", "SELECT * FROM orders;", []string{"missing_limit", "select_star"}},
		{"bounded select", "SELECT id FROM orders LIMIT 5", nil},
		{"leading wildcard", "SELECT id FROM users WHERE name LIKE '%ann%' LIMIT 1", []string{"inefficient_like"}},
		{"equality filter", "SELECT id FROM users WHERE email = 'a@b.c'", []string{"missing_limit", "missing_index_hints"}},
		{"mutation", "UPDATE users SET name = 'x'", nil},
	}

	advisor := NewAdvisor(nil, schema.SQLiteBackend)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, optimizationTypes(advisor.Analyze(context.Background(), tt.statement)))
		})
	}
}

func TestAdvisorMissingLimitFix(t *testing.T) {
	advisor := NewAdvisor(nil, schema.SQLiteBackend)
	opts := advisor.Analyze(context.Background(), "  SELECT id FROM orders ORDER BY id ;")
	require.NotEmpty(t, opts)
	assert.Equal(t, "SELECT id FROM orders ORDER BY id", opts[0].OriginalQuery)
	assert.Equal(t, "SELECT id FROM orders ORDER BY id LIMIT 100", opts[0].OptimizedQuery)
}

func TestAdvisorLargeTable(t *testing.T) {
	ctx := context.Background()
	exec := new(iocache.MockExecutor)
	exec.On("TableSchema", ctx, "orders").Return([]schema.Column{{Name: "id"}}, nil)
	exec.On("TableSchema", ctx, "ghosts").Return(nil, iocache.ErrUnknownTable)
	exec.On("Query", ctx, "SELECT COUNT(*) FROM orders").Return(schema.ResultSet{
		Columns: []string{"COUNT(*)"},
		Rows:    [][]any{{int64(5000)}},
	}, nil)

	advisor := NewAdvisor(exec, schema.SQLiteBackend)
	opts := advisor.Analyze(ctx, "SELECT o.id FROM orders o JOIN ghosts g ON g.id = o.id")

	assert.Equal(t, []string{"large_table_limit"}, optimizationTypes(opts))
	assert.Contains(t, opts[0].Description, "~5000 rows")
	assert.Equal(t, "SELECT o.id FROM orders o JOIN ghosts g ON g.id = o.id LIMIT 100", opts[0].OptimizedQuery)
	exec.AssertExpectations(t)
}

func TestAdvisorSmallTableHasNoLimitAdvice(t *testing.T) {
	ctx := context.Background()
	exec := new(iocache.MockExecutor)
	exec.On("TableSchema", ctx, "orders").Return([]schema.Column{{Name: "id"}}, nil)
	exec.On("Query", ctx, "SELECT COUNT(*) FROM orders").Return(schema.ResultSet{Rows: [][]any{{"12"}}}, nil)

	advisor := NewAdvisor(exec, schema.SQLiteBackend)
	opts := advisor.Analyze(ctx, "SELECT id, total FROM orders WHERE total > 10 AND id IN (SELECT id FROM orders)")
	assert.NotContains(t, optimizationTypes(opts), "large_table_limit")
}

func TestSuggestIndexes(t *testing.T) {
	stmt := "SELECT * FROM users WHERE email = 'x' AND age > 3 ORDER BY created_at"
	assert.Equal(t, []string{
		"CREATE INDEX IF NOT EXISTS idx_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_created_at_order ON users(created_at)",
	}, SuggestIndexes(stmt, schema.PostgreSQLBackend))

	assert.Equal(t, []string{"CREATE INDEX idx_email ON users(email)", "CREATE INDEX idx_created_at_order ON users(created_at)"},
		SuggestIndexes(stmt, schema.MySQLBackend))

	assert.Equal(t, []string{"CREATE INDEX IF NOT EXISTS idx_id ON table_name(id)"}, SuggestIndexes("WHERE id = 1", schema.SQLiteBackend))
	assert.Empty(t, SuggestIndexes("SELECT 1", schema.SQLiteBackend))
}

func TestAdvisorExplainPlan(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		backend schema.DatabaseBackend
		prefix  string
	}{
		{schema.SQLiteBackend, "EXPLAIN QUERY PLAN "},
		{schema.MySQLBackend, "EXPLAIN "},
		{schema.PostgreSQLBackend, "EXPLAIN "},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			exec := new(iocache.MockExecutor)
			exec.On("Query", ctx, tt.prefix+"SELECT * FROM orders").Return(schema.ResultSet{
				Rows: [][]any{{2, 0, 0, "SCAN orders"}},
			}, nil)

			plan, err := NewAdvisor(exec, tt.backend).ExplainPlan(ctx, "SELECT * FROM orders;")
			require.NoError(t, err)
			assert.Equal(t, []string{"2 | 0 | 0 | SCAN orders"}, plan)
			exec.AssertExpectations(t)
		})
	}
}

func TestAdvisorExplainPlanErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewAdvisor(nil, schema.SQLiteBackend).ExplainPlan(ctx, "SELECT 1")
	assert.ErrorIs(t, err, contract.ErrNoExecutor)

	exec := new(iocache.MockExecutor)
	exec.On("Query", ctx, mock.Anything).Return(nil, errors.New("syntax error"))
	_, err = NewAdvisor(exec, schema.SQLiteBackend).ExplainPlan(ctx, "SELEC 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestAdvise(t *testing.T) {
	ctx := context.Background()
	exec := new(iocache.MockExecutor)
	exec.On("TableSchema", ctx, "users").Return(nil, iocache.ErrUnknownTable)
	exec.On("Query", ctx, "EXPLAIN QUERY PLAN SELECT * FROM users WHERE id = 1").Return(schema.ResultSet{
		Rows: [][]any{{"SEARCH users USING INTEGER PRIMARY KEY (rowid=?)"}},
	}, nil)

	advice, err := NewAdvisor(exec, schema.SQLiteBackend).Advise(ctx, "SELECT * FROM users WHERE id = 1;", true)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = 1", advice.Statement)
	assert.Equal(t, []string{"missing_limit", "missing_index_hints", "select_star"}, optimizationTypes(advice.Optimizations))
	assert.Equal(t, []string{"CREATE INDEX IF NOT EXISTS idx_id ON users(id)"}, advice.IndexHints)
	assert.Len(t, advice.Plan, 1)

	advice, err = NewAdvisor(exec, schema.SQLiteBackend).Advise(ctx, "SELECT * FROM users WHERE id = 1", false)
	require.NoError(t, err)
	assert.Nil(t, advice.Plan)
}

func TestNaturalLanguageHints(t *testing.T) {
	optimized, hints := NaturalLanguageHints("show me all customers")
	assert.Equal(t, "show me all customers (suggest adding LIMIT)", optimized)
	assert.Equal(t, []string{"Consider limiting results for better performance"}, hints)

	_, hints = NaturalLanguageHints("find users named Ann and get details about orders")
	assert.Len(t, hints, 2)

	optimized, hints = NaturalLanguageHints("count orders")
	assert.Equal(t, "count orders", optimized)
	assert.Empty(t, hints)
}
