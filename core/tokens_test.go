package core

import (
	"testing"

	"github.com/huangsam/querymancer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefineQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"filler phrase", "Could you please tell me the total sales", "the total sales"},
		{"filler any case", "COULD YOU PLEASE TELL ME the answer", "the answer"},
		{"filler and qualifiers", "I would like to know basically what the really big orders are", "what the big orders are"},
		{"sql boilerplate", "Can you write a SQL query to SELECT name FROM users WHERE id = 5", "to SELECT name FROM users WHERE id = 5"},
		{"whole words only", "also the soup", "also the soup"},
		{"collapses whitespace", "  total \n\t sales  ", "total sales"},
		{"only filler", "I would like to know", ""},
		{"empty", "", ""},
	}

	opt := NewTokenOptimizer(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, opt.RefineQuery(tt.input))
		})
	}
}

func TestRefineQueryStripsDataScienceBoilerplate(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	refined := opt.RefineQuery("Can you analyze churn with the dataset using machine learning regression model")
	assert.NotContains(t, refined, "Can you analyze")
	assert.NotContains(t, refined, "with the dataset")
	assert.Contains(t, refined, "churn")
}

func conversation() []schema.Message {
	return []schema.Message{
		{Role: schema.SystemRole, Content: "You are helpful"},
		{Role: schema.UserRole, Content: "revenue by region"},
		{Role: schema.AssistantRole, Content: "here is revenue by region"},
		{Role: schema.UserRole, Content: "what about the weather"},
		{Role: schema.AssistantRole, Content: "sunny"},
		{Role: schema.UserRole, Content: "show revenue by region for 2025"},
	}
}

func TestPruneContextWithinBudgetIsUnchanged(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	msgs := conversation()
	pruned := opt.PruneContext(msgs, 5, 0)
	assert.Equal(t, msgs, pruned)

	pruned[0].Content = "changed"
	assert.Equal(t, "You are helpful", msgs[0].Content)
}

func TestPruneContextKeepsRelevantInOrder(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	msgs := conversation()
	pruned := opt.PruneContext(msgs, 3, 0)

	assert.Equal(t, []schema.Message{msgs[0], msgs[1], msgs[2], msgs[5]}, pruned)
	assert.Equal(t, pruned, opt.PruneContext(pruned, 3, 0))
}

func TestPruneContextAlwaysKeepsSystemAndLast(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	msgs := conversation()
	for _, limit := range []int{0, 1} {
		pruned := opt.PruneContext(msgs, limit, 0)
		assert.Equal(t, []schema.Message{msgs[0], msgs[5]}, pruned)
	}
}

func TestPruneContextTokenBudget(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	msgs := conversation()

	// system 4 + last 8 + best candidate 7 fits, the next one (5) does not.
	pruned := opt.PruneContext(msgs, 3, 20)
	assert.Equal(t, []schema.Message{msgs[0], msgs[2], msgs[5]}, pruned)

	pruned = opt.PruneContext(msgs, 3, 1)
	assert.Equal(t, []schema.Message{msgs[0], msgs[5]}, pruned)
}

func TestPruneContextEmpty(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	assert.Empty(t, opt.PruneContext(nil, 3, 0))
}

func TestTuneParameters(t *testing.T) {
	opt := NewTokenOptimizer(nil, nil)
	tests := []struct {
		name       string
		complexity float64
		kind       schema.BackendKind
		expected   schema.GenerationParams
	}{
		{"trivial", 0, schema.FastBackend, schema.GenerationParams{Temperature: 0, TopP: 0.5, MaxTokens: 256}},
		{"middle", 0.5, schema.AccurateBackend, schema.GenerationParams{Temperature: 0.35, TopP: 0.725, MaxTokens: 640}},
		{"maximal", 1, schema.AccurateBackend, schema.GenerationParams{Temperature: 0.7, TopP: 0.95, MaxTokens: 1024}},
		{"above range", 3, schema.FastBackend, schema.GenerationParams{Temperature: 0.7, TopP: 0.95, MaxTokens: 1024}},
		{"below range", -1, schema.FastBackend, schema.GenerationParams{Temperature: 0, TopP: 0.5, MaxTokens: 256}},
		{"unknown kind", 0.9, schema.BackendKind("gpu"), defaultParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := opt.TuneParameters(tt.complexity, tt.kind)
			assert.InDelta(t, tt.expected.Temperature, got.Temperature, 1e-9)
			assert.InDelta(t, tt.expected.TopP, got.TopP, 1e-9)
			assert.Equal(t, tt.expected.MaxTokens, got.MaxTokens)
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))

	msgs := conversation()
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	require.Positive(t, total)
	assert.Equal(t, total, EstimateMessagesTokens(msgs))
}
