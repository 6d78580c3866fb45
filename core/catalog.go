package core

import (
	"regexp"

	"github.com/huangsam/querymancer/schema"
)

// Pattern is one named entry of a heuristic catalog.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// DomainCatalog holds the detection patterns and score modifier of one domain.
type DomainCatalog struct {
	Domain   schema.Domain
	Modifier float64
	Patterns []Pattern
}

// Catalogs bundles every regex list used by the analyzer and the token pipeline.
// They are data: swap them to tune the heuristics for a deployment.
type Catalogs struct {
	// Complexity is matched against the lower-cased query.
	Complexity []Pattern
	// SQLMarkers are matched case-insensitively against the raw query.
	// The sql_complexity dimension is the matched share of this list, so every
	// added marker lowers the weight of each match. The defaults hold 17 SQL
	// constructs plus a "window function" phrase marker for prose queries.
	SQLMarkers []Pattern
	// Domains are evaluated in order; on a tie the earlier domain wins.
	Domains []DomainCatalog
	// Fillers and Qualifiers are stripped by RefineQuery.
	Fillers    []Pattern
	Qualifiers []Pattern
	// Boilerplate maps a domain to the request boilerplate stripped for it.
	Boilerplate map[schema.Domain][]Pattern
}

// domainMatchFloor is the match fraction a domain must exceed to be picked.
const domainMatchFloor = 0.3

func pattern(name, expr string) Pattern {
	return Pattern{Name: name, Re: regexp.MustCompile(expr)}
}

// phrase compiles a case-insensitive whole-phrase matcher.
func phrase(text string) Pattern {
	return pattern(text, `(?i)\b`+regexp.QuoteMeta(text)+`\b`)
}

func phrases(texts ...string) []Pattern {
	out := make([]Pattern, 0, len(texts))
	for _, t := range texts {
		out = append(out, phrase(t))
	}
	return out
}

// DefaultCatalogs returns the built-in catalogs.
func DefaultCatalogs() *Catalogs {
	return &Catalogs{
		Complexity: []Pattern{
			pattern("analysis", `trend|pattern|correlation|compare|group by|pivot|predict|forecast`),
			pattern("change", `change over time|growth rate|percentage|ratio|proportion`),
			pattern("aggregation", `rank|top|bottom|percentile|outlier|anomaly|distribution`),
			pattern("segmentation", `segment|cohort|category breakdown|detailed analysis`),
			pattern("explicit", `advanced|complex|sophisticated|in-depth`),
			pattern("analytics", `analyze|insight|metrics|dashboard|visualization|data mining`),
			pattern("statistics", `statistics|statistical|regression|classification|clustering`),
			pattern("time_series", `time series|seasonality|benchmark|performance indicator`),
			pattern("dimensional", `multi-dimensional|cross-tabulation|stratification|aggregation`),
		},
		SQLMarkers: []Pattern{
			pattern("cte", `(?i)WITH\s+.+\s+AS`),
			pattern("partition", `(?i)PARTITION\s+BY`),
			pattern("over", `(?i)OVER\s*\(`),
			pattern("multi_join", `(?i)JOIN.+JOIN`),
			pattern("case", `(?i)CASE\s+WHEN`),
			pattern("set_ops", `(?i)UNION|INTERSECT|EXCEPT`),
			pattern("having", `(?i)GROUP\s+BY.+HAVING`),
			pattern("ranking", `(?i)ROW_NUMBER\(\)|RANK\(\)|DENSE_RANK\(\)`),
			pattern("null_handling", `(?i)COALESCE|NULLIF|ISNULL`),
			pattern("string_funcs", `(?i)SUBSTRING|REPLACE|UPPER|LOWER`),
			pattern("date_funcs", `(?i)EXTRACT|DATE_PART|DATEADD`),
			pattern("offset_funcs", `(?i)LAG\(\)|LEAD\(\)|FIRST_VALUE\(\)|LAST_VALUE\(\)`),
			pattern("grouping_sets", `(?i)CUBE|ROLLUP`),
			pattern("pivot", `(?i)PIVOT|UNPIVOT`),
			pattern("recursive", `(?i)RECURSIVE`),
			pattern("document_funcs", `(?i)JSON_.*\(\)|XML_.*\(\)`),
			pattern("percentile", `(?i)PERCENTILE_.*\(\)`),
			pattern("window_phrase", `(?i)window\s+function`),
		},
		Domains: []DomainCatalog{
			{
				Domain:   schema.SQLDomain,
				Modifier: 0.15,
				Patterns: []Pattern{
					pattern("statements", `(?i)SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP`),
					pattern("from", `(?i)FROM\s+\w+(\s+JOIN)?`),
					pattern("where", `(?i)WHERE\s+\w+`),
					pattern("clauses", `(?i)GROUP BY|ORDER BY|HAVING`),
				},
			},
			{
				Domain:   schema.DataScienceDomain,
				Modifier: 0.20,
				Patterns: []Pattern{
					pattern("ml", `(?i)machine learning|neural network|deep learning|AI|artificial intelligence`),
					pattern("techniques", `(?i)regression|classification|clustering|NLP|natural language processing`),
					pattern("modeling", `(?i)train|model|algorithm|feature|dataset|prediction|accuracy`),
					pattern("inference", `(?i)correlation|causation|hypothesis|confidence interval|p-value`),
				},
			},
			{
				Domain:   schema.ReportingDomain,
				Modifier: 0.10,
				Patterns: []Pattern{
					pattern("artifacts", `(?i)report|dashboard|visualization|chart|graph|plot`),
					pattern("kpis", `(?i)KPI|key performance indicator|metric|measure|benchmark`),
					pattern("periods", `(?i)daily|weekly|monthly|quarterly|yearly|annual`),
					pattern("summaries", `(?i)trend|comparison|breakdown|summary`),
				},
			},
			{
				Domain:   schema.SimpleLookupDomain,
				Modifier: -0.05,
				Patterns: []Pattern{
					pattern("fetch", `(?i)find|get|retrieve|show|list|display`),
					pattern("search", `(?i)lookup|search|select`),
					pattern("simple", `(?i)simple|basic|quick`),
					pattern("single", `(?i)single|one|individual`),
				},
			},
		},
		Fillers: phrases(
			"I would like to know",
			"I want to understand",
			"Could you please tell me",
			"I need information about",
			"Can you help me understand",
			"Please provide details on",
			"I was wondering if",
			"If you don't mind",
			"I'd appreciate it if",
			"It would be great if you could",
			"I'm curious about",
			"Would it be possible to",
			"Do you think you could",
			"I'm trying to figure out",
			"I would be grateful if",
			"If it's not too much to ask",
			"I'd like to know more about",
			"Could you explain to me",
			"Hi, I need",
			"Hello, can you",
			"Please help me with",
			"If you have time",
			"I'm looking for",
		),
		Qualifiers: phrases(
			"very", "really", "quite", "basically", "actually", "definitely",
			"certainly", "probably", "honestly", "truly", "simply", "just",
			"so", "pretty much", "super", "extremely", "incredibly", "absolutely",
			"totally", "entirely", "completely", "utterly", "rather", "somewhat",
			"kind of", "sort of", "a bit", "a little", "in my opinion",
			"I think", "I believe", "as far as I know",
		),
		Boilerplate: map[schema.Domain][]Pattern{
			schema.SQLDomain: {
				pattern("ask_query", `(?i)Can you (please )?(write|create|generate) (a )?(SQL )?query`),
				pattern("need_query", `(?i)I need (a )?(SQL )?query to`),
				pattern("write_query", `(?i)(Write|Create|Generate) (a )?(SQL )?query`),
				pattern("using_sql", `(?i)(using|with) SQL`),
				pattern("sql_syntax", `(?i)in SQL syntax`),
				pattern("using_table", `(?i)using (the )?(following|this) table`),
			},
			schema.DataScienceDomain: {
				pattern("ask_analysis", `(?i)Can you (please )?(analyze|examine|study)`),
				pattern("need_analysis", `(?i)I need (to|you to) (analyze|examine)`),
				pattern("perform_analysis", `(?i)(Perform|Do|Conduct) (a|an) (analysis|examination)`),
				pattern("methods", `(?i)(using|with) (machine learning|ML|AI|statistical methods)`),
				pattern("with_data", `(?i)with (the )?(dataset|data)`),
			},
		},
	}
}
