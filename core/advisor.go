package core

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/schema"
)

// largeTableRows is the row count above which an unbounded read gets a LIMIT suggestion.
const largeTableRows = 1000

// defaultLimit is appended to reads that have no LIMIT.
const defaultLimit = 100

// statementRule is a regex-driven suggestion. fix may be nil when no rewrite applies.
type statementRule struct {
	kind        string
	re          *regexp.Regexp
	description string
	improvement string
	fix         func(stmt string) string
}

var (
	hasLimit      = regexp.MustCompile(`(?i)\bLIMIT\b`)
	tableRefs     = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+(\w+)`)
	whereColumns  = regexp.MustCompile(`(?i)WHERE\s+(\w+)\s*[=<>!]`)
	orderColumns  = regexp.MustCompile(`(?i)ORDER\s+BY\s+(\w+)`)
	showMeAll     = regexp.MustCompile(`(?i)show\s+me\s+all\s+`)
	findNamed     = regexp.MustCompile(`(?i)find\s+\w+\s+named\s+`)
	detailsAbout  = regexp.MustCompile(`(?i)get\s+details\s+about\s+`)
	trailingSemis = regexp.MustCompile(`[;\s]+$`)
)

var statementRules = []statementRule{
	{
		kind:        "missing_limit",
		re:          regexp.MustCompile(`(?is)^\s*SELECT\s+.*?\s+FROM\s+\w+(?:\s+WHERE\s+.+)?(?:\s+ORDER\s+BY\s+.+)?$`),
		description: "Consider adding LIMIT clause for large result sets",
		improvement: "Minor to Moderate",
		fix: func(stmt string) string {
			if hasLimit.MatchString(stmt) {
				return stmt
			}
			return fmt.Sprintf("%s LIMIT %d", stmt, defaultLimit)
		},
	},
	{
		kind:        "inefficient_like",
		re:          regexp.MustCompile(`(?i)WHERE\s+\w+\s+LIKE\s+['"]%.*?%['"]`),
		description: "LIKE with leading wildcard can be slow. Consider full-text search if available",
		improvement: "Moderate",
	},
	{
		kind:        "missing_index_hints",
		re:          regexp.MustCompile(`(?i)WHERE\s+(\w+)\s*=`),
		description: "Consider creating index on frequently queried columns",
		improvement: "Moderate to Significant",
	},
	{
		kind:        "select_star",
		re:          regexp.MustCompile(`(?i)SELECT\s+\*\s+FROM`),
		description: "Consider selecting specific columns instead of * for better performance",
		improvement: "Minor",
	},
}

// Advisor suggests rewrites and indexes for SQL statements, using the cached
// executor for table sizes and query plans.
type Advisor struct {
	exec    contract.Executor
	backend schema.DatabaseBackend
}

// NewAdvisor creates an advisor for statements run against backend.
func NewAdvisor(exec contract.Executor, backend schema.DatabaseBackend) *Advisor {
	return &Advisor{exec: exec, backend: backend}
}

// Advise collects suggestions, index hints and, when explain is set, the query plan.
func (a *Advisor) Advise(ctx context.Context, statement string, explain bool) (schema.Advice, error) {
	stmt := normalizeStatement(statement)
	advice := schema.Advice{
		Statement:     stmt,
		Optimizations: a.Analyze(ctx, stmt),
		IndexHints:    SuggestIndexes(stmt, a.backend),
	}
	if explain {
		plan, err := a.ExplainPlan(ctx, stmt)
		if err != nil {
			return advice, err
		}
		advice.Plan = plan
	}
	return advice, nil
}

// Analyze matches the statement against the rule catalog and the sizes of the tables it reads.
func (a *Advisor) Analyze(ctx context.Context, statement string) []schema.QueryOptimization {
	stmt := normalizeStatement(statement)
	var out []schema.QueryOptimization
	for _, rule := range statementRules {
		if !rule.re.MatchString(stmt) {
			continue
		}
		opt := schema.QueryOptimization{
			Type:                 rule.kind,
			Description:          rule.description,
			OriginalQuery:        stmt,
			EstimatedImprovement: rule.improvement,
		}
		if rule.fix != nil {
			fixed := rule.fix(stmt)
			if fixed == stmt {
				continue
			}
			opt.OptimizedQuery = fixed
		}
		out = append(out, opt)
	}
	return append(out, a.tableOptimizations(ctx, stmt)...)
}

// tableOptimizations suggests a LIMIT for unbounded reads of large tables.
// Tables that cannot be described or counted are skipped.
func (a *Advisor) tableOptimizations(ctx context.Context, stmt string) []schema.QueryOptimization {
	if a.exec == nil || hasLimit.MatchString(stmt) {
		return nil
	}
	var out []schema.QueryOptimization
	for _, table := range referencedTables(stmt) {
		if _, err := a.exec.TableSchema(ctx, table); err != nil {
			continue
		}
		rows, err := a.tableSize(ctx, table)
		if err != nil || rows <= largeTableRows {
			continue
		}
		out = append(out, schema.QueryOptimization{
			Type:                 "large_table_limit",
			Description:          fmt.Sprintf("Table '%s' has ~%d rows. Adding LIMIT for better performance", table, rows),
			OriginalQuery:        stmt,
			OptimizedQuery:       fmt.Sprintf("%s LIMIT %d", stmt, defaultLimit),
			EstimatedImprovement: "Significant",
		})
	}
	return out
}

func (a *Advisor) tableSize(ctx context.Context, table string) (int64, error) {
	rs, err := a.exec.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err != nil {
		return 0, err
	}
	if len(rs.Rows) == 0 || len(rs.Rows[0]) == 0 {
		return 0, nil
	}
	return strconv.ParseInt(fmt.Sprint(rs.Rows[0][0]), 10, 64)
}

// ExplainPlan returns one line per plan row, columns joined by " | ".
func (a *Advisor) ExplainPlan(ctx context.Context, statement string) ([]string, error) {
	if a.exec == nil {
		return nil, contract.ErrNoExecutor
	}
	prefix := "EXPLAIN "
	if a.backend == schema.SQLiteBackend {
		prefix = "EXPLAIN QUERY PLAN "
	}
	rs, err := a.exec.Query(ctx, prefix+normalizeStatement(statement))
	if err != nil {
		return nil, fmt.Errorf("could not get execution plan: %w", err)
	}
	lines := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		cols := make([]string, len(row))
		for i, v := range row {
			cols[i] = fmt.Sprint(v)
		}
		lines = append(lines, strings.Join(cols, " | "))
	}
	return lines, nil
}

// SuggestIndexes proposes an index for each column filtered in WHERE or sorted in ORDER BY.
func SuggestIndexes(statement string, backend schema.DatabaseBackend) []string {
	table := "table_name"
	if tables := referencedTables(statement); len(tables) > 0 {
		table = tables[0]
	}
	ifNotExists := "IF NOT EXISTS "
	if backend == schema.MySQLBackend {
		ifNotExists = ""
	}

	var out []string
	seen := make(map[string]bool)
	add := func(name, column string) {
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, fmt.Sprintf("CREATE INDEX %s%s ON %s(%s)", ifNotExists, name, table, column))
	}
	for _, m := range whereColumns.FindAllStringSubmatch(statement, -1) {
		add("idx_"+m[1], m[1])
	}
	for _, m := range orderColumns.FindAllStringSubmatch(statement, -1) {
		add("idx_"+m[1]+"_order", m[1])
	}
	return out
}

// NaturalLanguageHints flags request phrasings that tend to produce expensive statements.
func NaturalLanguageHints(userQuery string) (string, []string) {
	optimized := userQuery
	var hints []string
	if showMeAll.MatchString(userQuery) {
		hints = append(hints, "Consider limiting results for better performance")
		optimized = userQuery + " (suggest adding LIMIT)"
	}
	if findNamed.MatchString(userQuery) {
		hints = append(hints, "Using exact match for better performance")
	}
	if detailsAbout.MatchString(userQuery) {
		hints = append(hints, "Will select specific columns for efficiency")
	}
	return optimized, hints
}

// referencedTables lists distinct FROM/JOIN targets in order of appearance.
func referencedTables(statement string) []string {
	var tables []string
	seen := make(map[string]bool)
	for _, m := range tableRefs.FindAllStringSubmatch(statement, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tables = append(tables, m[1])
		}
	}
	return tables
}

func normalizeStatement(statement string) string {
	return trailingSemis.ReplaceAllString(strings.TrimSpace(statement), "")
}
