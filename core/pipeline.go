package core

import (
	"strings"

	"github.com/google/uuid"
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// Pipeline runs the whole request path: refine, route, prune and tune.
type Pipeline struct {
	tokens           *TokenOptimizer
	router           *Router
	maxMessages      int
	maxTokenEstimate int
}

// NewPipeline creates a pipeline with the given context budget.
func NewPipeline(tokens *TokenOptimizer, router *Router, maxMessages, maxTokenEstimate int) *Pipeline {
	return &Pipeline{
		tokens:           tokens,
		router:           router,
		maxMessages:      maxMessages,
		maxTokenEstimate: maxTokenEstimate,
	}
}

// Tokens returns the token optimizer used by the pipeline.
func (p *Pipeline) Tokens() *TokenOptimizer { return p.tokens }

// Router returns the router used by the pipeline.
func (p *Pipeline) Router() *Router { return p.router }

// OptimizeQueryExecution refines query, routes the refined text, prunes history
// and tunes generation parameters for the chosen backend. When refining strips
// everything, the raw query is routed instead. A persistence failure is
// returned together with a complete request.
func (p *Pipeline) OptimizeQueryExecution(query string, history []schema.Message) (schema.OptimizedRequest, error) {
	refined := p.CanonicalQuery(query)
	choice, err := p.router.Route(refined)
	pruned := p.tokens.PruneContext(history, p.maxMessages, p.maxTokenEstimate)
	params := p.tokens.TuneParameters(choice.Score.Overall, choice.Backend)

	saved := EstimateTokens(query) - EstimateTokens(refined) +
		EstimateMessagesTokens(history) - EstimateMessagesTokens(pruned)

	req := schema.OptimizedRequest{
		ID:           uuid.NewString(),
		Query:        query,
		RefinedQuery: refined,
		Choice:       choice,
		History:      pruned,
		Params:       params,
		TokensSaved:  max(saved, 0),
	}

	contract.Logger().Debug().
		Str("request_id", req.ID).
		Str("backend", string(choice.Backend)).
		Float64("score", choice.Score.Overall).
		Float64("threshold", choice.Threshold).
		Int("history_in", len(history)).
		Int("history_out", len(pruned)).
		Int("tokens_saved", req.TokensSaved).
		Msg("optimized request")

	return req, err
}

// CanonicalQuery is the text a query is recorded under by the pipeline.
// Feedback must be recorded under the same text to join its selection.
func (p *Pipeline) CanonicalQuery(query string) string {
	refined := p.tokens.RefineQuery(query)
	if refined == "" {
		return strings.TrimSpace(query)
	}
	return refined
}
