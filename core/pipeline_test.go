package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeQueryExecution(t *testing.T) {
	m := newTestMonitor(t)
	analyzer := NewAnalyzer(nil, nil)
	tokens := NewTokenOptimizer(nil, analyzer)
	router := NewRouter(analyzer, NewCalibrator(0.25, 20, nil), m, 0, nil)
	p := NewPipeline(tokens, router, 3, 0)

	query := "Could you please tell me " + complexQuery
	req, err := p.OptimizeQueryExecution(query, conversation())
	require.NoError(t, err)

	_, err = uuid.Parse(req.ID)
	assert.NoError(t, err)
	assert.Equal(t, query, req.Query)
	assert.Equal(t, complexQuery, req.RefinedQuery)
	assert.Equal(t, schema.AccurateBackend, req.Choice.Backend)
	assert.Len(t, req.History, 4)
	assert.Equal(t, tokens.TuneParameters(req.Choice.Score.Overall, schema.AccurateBackend), req.Params)
	assert.Positive(t, req.TokensSaved)

	selections := m.Snapshot().Selections
	require.Len(t, selections, 1)
	assert.Equal(t, complexQuery, selections[0].Query)
	assert.Same(t, router, p.Router())
	assert.Same(t, tokens, p.Tokens())
}

func TestOptimizeQueryExecutionFallsBackToRawQuery(t *testing.T) {
	m := newTestMonitor(t)
	analyzer := NewAnalyzer(nil, nil)
	p := NewPipeline(NewTokenOptimizer(nil, analyzer), NewRouter(analyzer, NewCalibrator(0.25, 20, nil), m, 0, nil), 3, 0)

	req, err := p.OptimizeQueryExecution("I would like to know", nil)
	require.NoError(t, err)
	assert.Equal(t, "I would like to know", req.RefinedQuery)
	assert.Zero(t, req.TokensSaved)
	assert.Empty(t, req.History)
	assert.Equal(t, "I would like to know", m.Snapshot().Selections[0].Query)
}

func TestCanonicalQueryJoinsFeedback(t *testing.T) {
	m := newTestMonitor(t)
	analyzer := NewAnalyzer(nil, nil)
	p := NewPipeline(NewTokenOptimizer(nil, analyzer), NewRouter(analyzer, NewCalibrator(0.25, 20, nil), m, 0, nil), 3, 0)

	query := "Could you please tell me " + simpleQuery
	_, err := p.OptimizeQueryExecution(query, nil)
	require.NoError(t, err)
	require.NoError(t, m.RecordFeedback(p.CanonicalQuery(query), 4, ""))

	perf := m.PerformanceByBackend()
	require.Contains(t, perf, schema.FastBackend)
	assert.Equal(t, []int{4}, perf[schema.FastBackend].Ratings)
}
