// Package core scores queries, routes them between a fast and an accurate backend,
// calibrates the routing threshold and trims requests before they are sent.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/huangsam/querymancer/internal/iocache"
	"github.com/huangsam/querymancer/schema"
)

// ComplexityCacheName labels the complexity cache in stats and metrics.
const ComplexityCacheName = "complexity"

// Tunable maxima to normalize dimensions.
const (
	maxWords            = 50.0 // queries beyond this length saturate
	maxWordsPerSentence = 20.0 // sentences beyond this length saturate
)

var sentenceSplit = regexp.MustCompile(`[.!?]`)

// Analyzer scores natural-language queries on several complexity dimensions.
// It is safe for concurrent use.
type Analyzer struct {
	catalogs *Catalogs
	weights  map[schema.Dimension]float64
	cache    *iocache.TTLCache[schema.ComplexityScore]
}

// NewAnalyzer creates an analyzer. A nil cache disables caching and
// nil catalogs select DefaultCatalogs.
func NewAnalyzer(catalogs *Catalogs, cache *iocache.TTLCache[schema.ComplexityScore]) *Analyzer {
	if catalogs == nil {
		catalogs = DefaultCatalogs()
	}
	return &Analyzer{
		catalogs: catalogs,
		weights:  schema.DefaultDimensionWeights(),
		cache:    cache,
	}
}

// ComplexityKey is the cache key of a query. Case and surrounding
// whitespace never change a score, so they are folded away.
func ComplexityKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

// Analyze returns the complexity of query, consulting the cache first.
// The returned score is a private copy.
func (a *Analyzer) Analyze(query string) schema.ComplexityScore {
	if strings.TrimSpace(query) == "" {
		return schema.ZeroComplexity()
	}
	if a.cache == nil {
		return a.Score(query)
	}

	key := ComplexityKey(query)
	if score, ok := a.cache.Get(key); ok {
		return score.Clone()
	}
	score := a.Score(query)
	a.cache.Set(key, score.Clone())
	return score
}

// Score computes the complexity of query without touching the cache.
func (a *Analyzer) Score(query string) schema.ComplexityScore {
	if strings.TrimSpace(query) == "" {
		return schema.ZeroComplexity()
	}

	lowered := strings.ToLower(query)
	dims := map[schema.Dimension]float64{
		schema.DimLength:        clamp01(float64(len(strings.Fields(query))) / maxWords),
		schema.DimPatterns:      matchFraction(a.catalogs.Complexity, lowered),
		schema.DimSQLComplexity: matchFraction(a.catalogs.SQLMarkers, query),
		schema.DimCognitiveLoad: cognitiveLoad(query),
	}

	var overall float64
	for _, d := range schema.AllDimensions {
		overall += dims[d] * a.weights[d]
	}

	domain := a.DetectDomain(query)
	if domain != schema.NoDomain {
		overall += a.modifier(domain)
	}

	return schema.ComplexityScore{
		Overall:    clamp01(overall),
		Dimensions: dims,
		Domain:     domain,
	}
}

// DetectDomain picks the domain whose catalog matches the largest fraction of
// its patterns, provided that fraction exceeds the match floor.
func (a *Analyzer) DetectDomain(query string) schema.Domain {
	best := schema.NoDomain
	bestScore := domainMatchFloor
	for _, dc := range a.catalogs.Domains {
		if score := matchFraction(dc.Patterns, query); score > bestScore {
			best = dc.Domain
			bestScore = score
		}
	}
	return best
}

// CacheStats returns the complexity cache counters, if caching is enabled.
func (a *Analyzer) CacheStats() (schema.CacheStats, bool) {
	if a.cache == nil {
		return schema.CacheStats{}, false
	}
	return a.cache.Stats(), true
}

func (a *Analyzer) modifier(domain schema.Domain) float64 {
	for _, dc := range a.catalogs.Domains {
		if dc.Domain == domain {
			return dc.Modifier
		}
	}
	return 0
}

// matchFraction is the share of patterns that match text, in [0, 1].
func matchFraction(patterns []Pattern, text string) float64 {
	if len(patterns) == 0 {
		return 0
	}
	matches := 0
	for _, p := range patterns {
		if p.Re.MatchString(text) {
			matches++
		}
	}
	return clamp01(float64(matches) / float64(len(patterns)))
}

// cognitiveLoad averages the words per sentence. Empty segments count toward
// the sentence total, so trailing punctuation lowers the average.
func cognitiveLoad(query string) float64 {
	segments := sentenceSplit.Split(query, -1)
	words := 0
	for _, s := range segments {
		words += len(strings.Fields(s))
	}
	avg := float64(words) / float64(max(len(segments), 1))
	return clamp01(avg / maxWordsPerSentence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
