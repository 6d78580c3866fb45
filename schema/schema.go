// Package schema has configs, models and constants for all parts of querymancer.
package schema

import "maps"

// ComplexityScore is the result of analyzing one query.
// Overall and every dimension value lie in [0, 1].
type ComplexityScore struct {
	Overall    float64               `json:"overall"`
	Dimensions map[Dimension]float64 `json:"dimensions"`
	Domain     Domain                `json:"domain,omitempty"`
}

// Clone returns a deep copy so cached scores are never shared by reference.
func (c ComplexityScore) Clone() ComplexityScore {
	clone := c
	if c.Dimensions != nil {
		clone.Dimensions = make(map[Dimension]float64, len(c.Dimensions))
		maps.Copy(clone.Dimensions, c.Dimensions)
	}
	return clone
}

// ZeroComplexity is the score of an empty or whitespace-only query.
func ZeroComplexity() ComplexityScore {
	dims := make(map[Dimension]float64, len(AllDimensions))
	for _, d := range AllDimensions {
		dims[d] = 0
	}
	return ComplexityScore{Dimensions: dims}
}

// GenerationParams are the tuned sampling parameters handed to a backend.
type GenerationParams struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// BackendChoice is the router's decision for a single query.
type BackendChoice struct {
	Backend   BackendKind     `json:"backend"`
	Score     ComplexityScore `json:"score"`
	Threshold float64         `json:"threshold"`
}

// Message is one turn of conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// OptimizedRequest is the output of the full token pipeline for one request.
type OptimizedRequest struct {
	ID           string           `json:"id"`
	Query        string           `json:"query"`
	RefinedQuery string           `json:"refined_query"`
	Choice       BackendChoice    `json:"choice"`
	History      []Message        `json:"history"`
	Params       GenerationParams `json:"params"`
	TokensSaved  int              `json:"tokens_saved"`
}

// ResultSet holds the rows returned by a statement.
// Mutating statements populate Rows only when they have a RETURNING clause.
type ResultSet struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowsAffected int64    `json:"rows_affected,omitempty"`
}

// Column describes one column of a table.
type Column struct {
	Position   int     `json:"position"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"not_null"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
}

// QueryOptimization is one suggestion produced by the SQL advisor.
type QueryOptimization struct {
	Type                 string `json:"type"`
	Description          string `json:"description"`
	OriginalQuery        string `json:"original_query"`
	OptimizedQuery       string `json:"optimized_query,omitempty"`
	EstimatedImprovement string `json:"estimated_improvement"`
}

// Advice collects everything the SQL advisor knows about one statement.
type Advice struct {
	Statement     string              `json:"statement"`
	Optimizations []QueryOptimization `json:"optimizations"`
	IndexHints    []string            `json:"index_hints"`
	Plan          []string            `json:"plan,omitempty"`
}
