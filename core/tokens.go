package core

import (
	"regexp"
	"slices"
	"strings"

	"github.com/huangsam/querymancer/schema"
)

// Context pruning weights.
const (
	relevanceWeight = 0.7
	recencyWeight   = 0.3
)

// Generation parameter ranges.
const (
	maxTemperature = 0.7
	minTopP        = 0.5
	maxTopP        = 0.95
	baseMaxTokens  = 256
	spanMaxTokens  = 768
)

// defaultParams is handed to backend kinds the optimizer does not know.
var defaultParams = schema.GenerationParams{Temperature: 0.0, TopP: 0.9, MaxTokens: 512}

var whitespace = regexp.MustCompile(`\s+`)

// TokenOptimizer shrinks queries and conversation history before they reach a backend.
type TokenOptimizer struct {
	catalogs *Catalogs
	analyzer *Analyzer
}

// NewTokenOptimizer creates an optimizer that detects domains with analyzer.
func NewTokenOptimizer(catalogs *Catalogs, analyzer *Analyzer) *TokenOptimizer {
	if catalogs == nil {
		catalogs = DefaultCatalogs()
	}
	if analyzer == nil {
		analyzer = NewAnalyzer(catalogs, nil)
	}
	return &TokenOptimizer{catalogs: catalogs, analyzer: analyzer}
}

// RefineQuery strips filler phrases, redundant qualifiers and domain boilerplate,
// then collapses whitespace.
func (t *TokenOptimizer) RefineQuery(text string) string {
	refined := stripAll(text, t.catalogs.Fillers)
	refined = stripAll(refined, t.catalogs.Qualifiers)
	if domain := t.analyzer.DetectDomain(refined); domain != schema.NoDomain {
		refined = stripAll(refined, t.catalogs.Boilerplate[domain])
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(refined, " "))
}

func stripAll(text string, patterns []Pattern) string {
	for _, p := range patterns {
		text = p.Re.ReplaceAllString(text, "")
	}
	return text
}

// scoredMessage is a non-system message with its position and retention score.
type scoredMessage struct {
	index int // position in the original slice
	score float64
}

// PruneContext keeps every system message, the last non-system message and
// the maxMessages-1 other messages most relevant to it, in original order.
// When maxTokenEstimate > 0, the lowest-scored kept messages are dropped until
// the estimate fits. A list already within maxMessages is returned unchanged.
func (t *TokenOptimizer) PruneContext(messages []schema.Message, maxMessages, maxTokenEstimate int) []schema.Message {
	maxMessages = max(maxMessages, 1)

	var nonSystem []int
	for i, m := range messages {
		if m.Role != schema.SystemRole {
			nonSystem = append(nonSystem, i)
		}
	}
	if len(nonSystem) <= maxMessages {
		return slices.Clone(messages)
	}

	lastIdx := nonSystem[len(nonSystem)-1]
	lastWords := wordSet(messages[lastIdx].Content)

	candidates := make([]scoredMessage, 0, len(nonSystem)-1)
	for rank, idx := range nonSystem[:len(nonSystem)-1] {
		relevance := overlap(wordSet(messages[idx].Content), lastWords)
		recency := float64(rank+1) / float64(len(nonSystem))
		candidates = append(candidates, scoredMessage{
			index: idx,
			score: relevanceWeight*relevance + recencyWeight*recency,
		})
	}
	slices.SortStableFunc(candidates, func(a, b scoredMessage) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	kept := candidates[:maxMessages-1]

	if maxTokenEstimate > 0 {
		fixed := EstimateTokens(messages[lastIdx].Content)
		for _, m := range messages {
			if m.Role == schema.SystemRole {
				fixed += EstimateTokens(m.Content)
			}
		}
		total := fixed
		for _, c := range kept {
			total += EstimateTokens(messages[c.index].Content)
		}
		// kept is ordered best first, so trimming from the tail drops the lowest scores.
		for len(kept) > 0 && total > maxTokenEstimate {
			total -= EstimateTokens(messages[kept[len(kept)-1].index].Content)
			kept = kept[:len(kept)-1]
		}
	}

	keep := make(map[int]bool, len(kept)+1)
	keep[lastIdx] = true
	for _, c := range kept {
		keep[c.index] = true
	}

	pruned := make([]schema.Message, 0, len(keep))
	for i, m := range messages {
		if m.Role == schema.SystemRole || keep[i] {
			pruned = append(pruned, m)
		}
	}
	return pruned
}

// TuneParameters maps a complexity score to generation parameters.
// Unknown backend kinds get a fixed conservative default.
func (t *TokenOptimizer) TuneParameters(complexity float64, kind schema.BackendKind) schema.GenerationParams {
	switch kind {
	case schema.FastBackend, schema.AccurateBackend:
	default:
		return defaultParams
	}
	c := clamp01(complexity)
	return schema.GenerationParams{
		Temperature: max(0, min(maxTemperature, c*maxTemperature)),
		TopP:        max(minTopP, min(maxTopP, minTopP+c*(maxTopP-minTopP))),
		MaxTokens:   int(baseMaxTokens + c*spanMaxTokens),
	}
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// EstimateMessagesTokens sums EstimateTokens over message contents.
func EstimateMessagesTokens(messages []schema.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content)
	}
	return total
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// overlap is |a ∩ b| / max(|a|, |b|), or 0 when either set is empty.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
